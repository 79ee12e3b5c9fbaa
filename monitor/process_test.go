package monitor

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/mysql"
	"github.com/pkg/errors"

	"github.com/dluxio/hiveonboard/chainapi"
	"github.com/dluxio/hiveonboard/chainparams"
	"github.com/dluxio/hiveonboard/dbmodels"
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

func expectNoPriorConfirmation(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT (.+) FROM `payment_confirmations`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "channel_id", "crypto_type", "tx_hash"}))
}

func btcChannel() *dbmodels.PaymentChannel {
	memo := "chan-memo"
	created := time.Now().UTC().Add(-time.Hour)
	return &dbmodels.PaymentChannel{
		ID:             1,
		ChannelID:      "abc123",
		Username:       "alice",
		CryptoType:     string(chainparams.BTC),
		DepositAddress: "bc1qdeposit",
		AmountCrypto:   0.000147,
		Memo:           &memo,
		Status:         dbmodels.ChannelStatusPending,
		CreatedAt:      created,
		ExpiresAt:      created.Add(24 * time.Hour),
	}
}

func matchingTx(channel *dbmodels.PaymentChannel) *chainapi.Tx {
	return &chainapi.Tx{
		Hash:          "txhash1",
		To:            channel.DepositAddress,
		Amount:        channel.AmountCrypto,
		Confirmations: 1,
		Timestamp:     time.Now().UTC(),
	}
}

func TestVerifyTransactionMatchRejections(t *testing.T) {
	m := &Monitor{}
	params, _ := chainparams.Get(chainparams.BTC)
	channel := btcChannel()

	tests := []struct {
		name    string
		mutate  func(tx *chainapi.Tx)
		wantErr error
	}{
		{
			name:    "wrong recipient",
			mutate:  func(tx *chainapi.Tx) { tx.To = "bc1qsomeoneelse" },
			wantErr: ErrWrongRecipient,
		},
		{
			name: "below dust",
			mutate: func(tx *chainapi.Tx) {
				tx.Amount = 0.000001
			},
			wantErr: ErrBelowDust,
		},
		{
			name: "just below tolerance",
			mutate: func(tx *chainapi.Tx) {
				tx.Amount = channel.AmountCrypto*amountTolerance - 0.00000001
			},
			wantErr: ErrInsufficientAmount,
		},
		{
			name: "memo mismatch",
			mutate: func(tx *chainapi.Tx) {
				memo := "wrong-memo"
				tx.Memo = &memo
			},
			wantErr: ErrMemoMismatch,
		},
		{
			name: "predates channel",
			mutate: func(tx *chainapi.Tx) {
				tx.Timestamp = channel.CreatedAt.Add(-time.Second)
			},
			wantErr: ErrTooEarly,
		},
	}
	for _, test := range tests {
		tx := matchingTx(channel)
		test.mutate(tx)
		// Every rejection fires before the database is consulted.
		err := m.verifyTransactionMatch(nil, params, channel, tx)
		if errors.Cause(err) != test.wantErr {
			t.Errorf("%s: got %v, want %v", test.name, err, test.wantErr)
		}
	}
}

func TestVerifyTransactionMatchAcceptances(t *testing.T) {
	m := &Monitor{}
	params, _ := chainparams.Get(chainparams.BTC)
	channel := btcChannel()

	tests := []struct {
		name   string
		mutate func(tx *chainapi.Tx)
	}{
		{
			name:   "exact amount",
			mutate: func(tx *chainapi.Tx) {},
		},
		{
			name: "exactly at tolerance",
			mutate: func(tx *chainapi.Tx) {
				tx.Amount = channel.AmountCrypto * amountTolerance
			},
		},
		{
			name: "stamped at channel creation",
			mutate: func(tx *chainapi.Tx) {
				tx.Timestamp = channel.CreatedAt
			},
		},
		{
			name: "memo matches after trimming",
			mutate: func(tx *chainapi.Tx) {
				memo := "  chan-memo  "
				tx.Memo = &memo
			},
		},
		{
			// A memo-less deposit to the right address still counts.
			name:   "no transaction memo",
			mutate: func(tx *chainapi.Tx) { tx.Memo = nil },
		},
	}
	for _, test := range tests {
		db, mock := mockDB(t)
		expectNoPriorConfirmation(mock)

		tx := matchingTx(channel)
		test.mutate(tx)
		err := m.verifyTransactionMatch(db, params, channel, tx)
		if err != nil {
			t.Errorf("%s: rejected a matching transaction: %s", test.name, err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("%s: %s", test.name, err)
		}
	}
}

func TestProcessPaymentFoundStampsProcessedConfirmation(t *testing.T) {
	m := &Monitor{notifier: notifications.NewManager(nil)}
	params, _ := chainparams.Get(chainparams.BTC)
	channel := btcChannel()
	channel.Status = dbmodels.ChannelStatusConfirming

	tx := matchingTx(channel)
	tx.Confirmations = params.RequiredConfirmations

	db, mock := mockDB(t)
	// The sighting was recorded on a previous pass; this one refreshes it.
	mock.ExpectQuery("SELECT (.+) FROM `payment_confirmations`").
		WillReturnRows(sqlmock.
			NewRows([]string{"id", "channel_id", "crypto_type", "tx_hash"}).
			AddRow(7, channel.ID, channel.CryptoType, tx.Hash))
	mock.ExpectExec("UPDATE `payment_confirmations` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// pending -> confirming no longer applies, so only the confirmation
	// counter is refreshed.
	mock.ExpectExec("UPDATE `payment_channels` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE `payment_channels` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// confirming -> confirmed succeeds, and the sighting that caused it is
	// stamped processed.
	mock.ExpectExec("UPDATE `payment_channels` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `payment_confirmations` SET `processed_at`").
		WithArgs(sqlmock.AnyArg(), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// The notification write that follows needs the service database and
	// fails here; everything up to the processed stamp must already have run.
	err := m.ProcessPaymentFound(db, params, channel, tx)
	if err == nil {
		t.Error("expected the notification write to fail without a service database")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestVerifyTransactionMatchDoubleCredit(t *testing.T) {
	m := &Monitor{}
	params, _ := chainparams.Get(chainparams.BTC)
	channel := btcChannel()

	t.Run("credited to another channel", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectQuery("SELECT (.+) FROM `payment_confirmations`").
			WillReturnRows(sqlmock.
				NewRows([]string{"id", "channel_id", "crypto_type", "tx_hash"}).
				AddRow(9, 42, channel.CryptoType, "txhash1"))

		err := m.verifyTransactionMatch(db, params, channel, matchingTx(channel))
		if errors.Cause(err) != ErrAlreadyCredited {
			t.Errorf("got %v, want ErrAlreadyCredited", err)
		}
	})

	t.Run("credited to this channel", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectQuery("SELECT (.+) FROM `payment_confirmations`").
			WillReturnRows(sqlmock.
				NewRows([]string{"id", "channel_id", "crypto_type", "tx_hash"}).
				AddRow(9, channel.ID, channel.CryptoType, "txhash1"))

		// Re-seeing the channel's own transaction is how confirmations
		// advance.
		err := m.verifyTransactionMatch(db, params, channel, matchingTx(channel))
		if err != nil {
			t.Errorf("rejected the channel's own transaction: %s", err)
		}
	})
}
