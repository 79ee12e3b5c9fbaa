package main

import (
	"github.com/dluxio/hiveonboard/logger"
	"github.com/dluxio/hiveonboard/util/panics"
)

var (
	log   = logger.Logger("MAIN")
	spawn = panics.GoroutineWrapperFunc(log)
)
