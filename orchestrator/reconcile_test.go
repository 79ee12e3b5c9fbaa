package orchestrator

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/mysql"

	"github.com/dluxio/hiveonboard/hive"
	"github.com/dluxio/hiveonboard/notifications"
)

func mockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %s", err)
	}
	db, err := gorm.Open("mysql", sqlDB)
	if err != nil {
		t.Fatalf("gorm.Open failed: %s", err)
	}
	db.LogMode(false)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestReconcileCoversLiveChannelsAndSurvivesLookupFailures(t *testing.T) {
	// The first account lookup fails; the second reports that the username
	// of a still-pending channel already exists on chain.
	var calls int32
	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			fmt.Fprint(w, `{"error":{"code":-32000,"message":"server overloaded"}}`)
			return
		}
		fmt.Fprint(w, `{"result":[{"name":"bob","created":"2026-08-01T00:00:00","pending_claimed_accounts":0}]}`)
	}))
	defer node.Close()

	db, mock := mockDB(t)
	mock.ExpectQuery("SELECT (.+) FROM `payment_channels`").
		WithArgs("pending", "confirming", "confirmed").
		WillReturnRows(sqlmock.
			NewRows([]string{"id", "channel_id", "username", "crypto_type", "status"}).
			AddRow(1, "chanA", "alice", "BTC", "confirmed").
			AddRow(2, "chanB", "bob", "SOL", "pending"))
	mock.ExpectExec("UPDATE `payment_channels` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	o := &Orchestrator{
		hiveClient: hive.NewClient(node.URL),
		notifier:   notifications.NewManager(nil),
	}
	err := o.reconcileChannels(db)
	if err != nil {
		t.Fatalf("reconcileChannels failed: %s", err)
	}

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("made %d account lookups, want 2; a failed lookup must not abort the pass", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
