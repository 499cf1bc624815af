package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestParseConfig_AppliesOverrides(t *testing.T) {
	req := require.New(t)

	pc, err := ParseConfig(Config{
		DSN:               "postgres://u:p@localhost:5432/chat?sslmode=disable",
		MaxConns:          7,
		MinConns:          2,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   time.Minute,
		HealthCheckPeriod: 10 * time.Second,
		ApplicationName:   "chat-service",
		StatementTimeout:  3 * time.Second,
	})

	req.NoError(err)
	req.EqualValues(7, pc.MaxConns)
	req.EqualValues(2, pc.MinConns)
	req.Equal(time.Hour, pc.MaxConnLifetime)
	req.Equal(time.Minute, pc.MaxConnIdleTime)
	req.Equal(10*time.Second, pc.HealthCheckPeriod)
	req.Equal("chat-service", pc.ConnConfig.RuntimeParams["application_name"])
	req.Equal("3000", pc.ConnConfig.RuntimeParams["statement_timeout"])
}

func TestParseConfig_KeepsDSNDefaults(t *testing.T) {
	req := require.New(t)

	pc, err := ParseConfig(Config{DSN: "postgres://u:p@localhost:5432/chat?pool_max_conns=3"})

	req.NoError(err)
	req.EqualValues(3, pc.MaxConns)
	req.NotContains(pc.ConnConfig.RuntimeParams, "statement_timeout")
}

func TestParseConfig_InvalidDSN(t *testing.T) {
	_, err := ParseConfig(Config{DSN: "://nope"})
	require.Error(t, err)

	_, err = ParseConfig(Config{})
	require.Error(t, err)
}

func TestWaitReady_RetriesUntilPing(t *testing.T) {
	req := require.New(t)
	mock, err := pgxmock.NewPool()
	req.NoError(err)
	defer mock.Close()

	// Given: первые два ping падают
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectPing()

	// When
	err = WaitReady(context.Background(), mock, 3, time.Millisecond)

	// Then
	req.NoError(err)
	req.NoError(mock.ExpectationsWereMet())
}

func TestWaitReady_GivesUp(t *testing.T) {
	req := require.New(t)
	mock, err := pgxmock.NewPool()
	req.NoError(err)
	defer mock.Close()

	mock.ExpectPing().WillReturnError(errors.New("down"))
	mock.ExpectPing().WillReturnError(errors.New("down"))

	err = WaitReady(context.Background(), mock, 2, time.Millisecond)

	req.ErrorContains(err, "after 2 attempts")
	req.NoError(mock.ExpectationsWereMet())
}

func TestWaitReady_StopsOnCancel(t *testing.T) {
	req := require.New(t)
	mock, err := pgxmock.NewPool()
	req.NoError(err)
	defer mock.Close()

	// Given: база не отвечает, а следующая попытка только через час
	mock.ExpectPing().WillReturnError(errors.New("down"))
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	// When
	err = WaitReady(ctx, mock, 5, time.Hour)

	// Then: ожидание прерывается отменой, второй ping не делается
	req.ErrorIs(err, context.Canceled)
	req.NoError(mock.ExpectationsWereMet())
}
