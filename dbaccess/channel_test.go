package dbaccess

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/mysql"
	"github.com/pkg/errors"

	"github.com/dluxio/hiveonboard/dbmodels"
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

func TestAdvanceChannelStatus(t *testing.T) {
	t.Run("advances when the channel holds a prior status", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectExec("UPDATE `payment_channels` SET").
			WillReturnResult(sqlmock.NewResult(0, 1))

		advanced, err := AdvanceChannelStatus(db, 1,
			[]dbmodels.ChannelStatus{dbmodels.ChannelStatusPending},
			dbmodels.ChannelStatusConfirming,
			map[string]interface{}{"confirmations": int64(1)})
		if err != nil {
			t.Fatalf("AdvanceChannelStatus failed: %s", err)
		}
		if !advanced {
			t.Error("AdvanceChannelStatus reported no transition on an affected row")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})

	t.Run("refuses when the channel moved on", func(t *testing.T) {
		// A concurrent writer already advanced the channel, so the
		// conditional update matches nothing. This is what keeps the
		// lifecycle monotonic.
		db, mock := mockDB(t)
		mock.ExpectExec("UPDATE `payment_channels` SET").
			WillReturnResult(sqlmock.NewResult(0, 0))

		advanced, err := AdvanceChannelStatus(db, 1,
			[]dbmodels.ChannelStatus{dbmodels.ChannelStatusPending},
			dbmodels.ChannelStatusConfirming, nil)
		if err != nil {
			t.Fatalf("AdvanceChannelStatus failed: %s", err)
		}
		if advanced {
			t.Error("AdvanceChannelStatus reported a transition on zero affected rows")
		}
	})

	t.Run("surfaces database errors", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectExec("UPDATE `payment_channels` SET").
			WillReturnError(errors.New("connection lost"))

		_, err := AdvanceChannelStatus(db, 1,
			[]dbmodels.ChannelStatus{dbmodels.ChannelStatusPending},
			dbmodels.ChannelStatusExpired, nil)
		if err == nil {
			t.Error("AdvanceChannelStatus swallowed a database error")
		}
	})
}

func TestChannelByChannelIDNotFound(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectQuery("SELECT (.+) FROM `payment_channels`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "channel_id"}))

	channel, err := ChannelByChannelID(db, "missing")
	if err != nil {
		t.Fatalf("ChannelByChannelID failed: %s", err)
	}
	if channel != nil {
		t.Errorf("got channel %+v for a missing id, want nil", channel)
	}
}

func TestCountChannelsByStatus(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectQuery("SELECT status, COUNT(.+) FROM `payment_channels`").
		WithArgs("pending", "confirming", "confirmed").
		WillReturnRows(sqlmock.
			NewRows([]string{"status", "total"}).
			AddRow("pending", 3).
			AddRow("confirmed", 1))

	counts, err := CountChannelsByStatus(db)
	if err != nil {
		t.Fatalf("CountChannelsByStatus failed: %s", err)
	}
	if counts[dbmodels.ChannelStatusPending] != 3 {
		t.Errorf("pending count is %d, want 3", counts[dbmodels.ChannelStatusPending])
	}
	if counts[dbmodels.ChannelStatusConfirmed] != 1 {
		t.Errorf("confirmed count is %d, want 1", counts[dbmodels.ChannelStatusConfirmed])
	}
	// A status with no live channels is simply absent.
	if _, ok := counts[dbmodels.ChannelStatusConfirming]; ok {
		t.Error("confirming appeared in the counts without any rows")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpsertConfirmationToleratesDuplicateKeyRace(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectQuery("SELECT (.+) FROM `payment_confirmations`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "channel_id", "tx_hash"}))
	mock.ExpectExec("INSERT INTO `payment_confirmations`").
		WillReturnError(errors.New("Error 1062: Duplicate entry 'BTC-txhash1' for key 'ux_confirmations_crypto_tx'"))

	err := UpsertConfirmation(db, &dbmodels.PaymentConfirmation{
		ChannelID:      1,
		CryptoType:     "BTC",
		TxHash:         "txhash1",
		Confirmations:  1,
		AmountReceived: 0.000147,
		DetectedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Errorf("a duplicate-key race must not surface as an error, got: %s", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMarkConfirmationProcessed(t *testing.T) {
	db, mock := mockDB(t)
	// The IS NULL guard keeps the stamp first-writer-wins under concurrent
	// pollers.
	mock.ExpectExec("UPDATE `payment_confirmations` SET `processed_at` (.+) processed_at IS NULL").
		WithArgs(sqlmock.AnyArg(), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := MarkConfirmationProcessed(db, 7, time.Now().UTC())
	if err != nil {
		t.Fatalf("MarkConfirmationProcessed failed: %s", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestIsDuplicateKeyError(t *testing.T) {
	tests := []struct {
		err       error
		duplicate bool
	}{
		{nil, false},
		{errors.New("Error 1062: Duplicate entry"), true},
		{errors.New("Duplicate entry 'x' for key 'y'"), true},
		{errors.New("Error 1064: syntax error"), false},
	}
	for _, test := range tests {
		if got := IsDuplicateKeyError(test.err); got != test.duplicate {
			t.Errorf("IsDuplicateKeyError(%v) = %t, want %t", test.err, got, test.duplicate)
		}
	}
}
