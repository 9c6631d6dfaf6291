package postgres

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"coursebook/config"
	deliverycontext "coursebook/internal/delivery/context"
	"coursebook/internal/errors"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}

	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func TestQueryLogger_ParamsFilter(t *testing.T) {
	base, _ := bufferLogger()
	sql := `SELECT * FROM "accounts" WHERE email = $1`

	quiet := newQueryLogger(base, &config.Config{})
	gotSQL, vars := quiet.ParamsFilter(context.Background(), sql, "budi@example.com")
	assert.Equal(t, sql, gotSQL)
	assert.Nil(t, vars)

	cfg := &config.Config{}
	cfg.Env.Debug = true
	verbose := newQueryLogger(base, cfg)
	_, vars = verbose.ParamsFilter(context.Background(), sql, "budi@example.com")
	assert.Equal(t, []any{"budi@example.com"}, vars)
}

func TestQueryLogger_Trace(t *testing.T) {
	fc := func() (string, int64) { return `SELECT 1`, 1 }

	t.Run("record not found is not an error", func(t *testing.T) {
		base, buf := bufferLogger()
		newQueryLogger(base, &config.Config{}).Trace(context.Background(), time.Now(), fc, gorm.ErrRecordNotFound)
		assert.Empty(t, buf.String())
	})

	t.Run("failures are logged", func(t *testing.T) {
		base, buf := bufferLogger()
		newQueryLogger(base, &config.Config{}).Trace(context.Background(), time.Now(), fc, errors.New("conn reset"))
		assert.Contains(t, buf.String(), "Query failed")
		assert.Contains(t, buf.String(), "conn reset")
		assert.Contains(t, buf.String(), "component=postgres")
	})

	t.Run("slow queries warn", func(t *testing.T) {
		base, buf := bufferLogger()
		newQueryLogger(base, &config.Config{}).Trace(context.Background(), time.Now().Add(-time.Second), fc, nil)
		assert.Contains(t, buf.String(), "Slow query")
	})

	t.Run("fast queries stay quiet below info", func(t *testing.T) {
		base, buf := bufferLogger()
		newQueryLogger(base, &config.Config{}).Trace(context.Background(), time.Now(), fc, nil)
		assert.Empty(t, buf.String())
	})

	t.Run("request logger is preferred", func(t *testing.T) {
		base, baseBuf := bufferLogger()
		scoped, scopedBuf := bufferLogger()
		ctx := deliverycontext.WithLogger(context.Background(), scoped.With(slog.String("request_id", "r-1")))

		newQueryLogger(base, &config.Config{}).Trace(ctx, time.Now(), fc, errors.New("boom"))
		assert.Empty(t, baseBuf.String())
		assert.Contains(t, scopedBuf.String(), "request_id=r-1")
	})
}
