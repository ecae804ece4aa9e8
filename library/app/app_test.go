package app

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Astemirdum/library-desk/library/config"
	"github.com/Astemirdum/library-desk/pkg/auth"
)

func TestCheckSession(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		secret   string
		level    zapcore.Level
		wantErr  error
		wantWarn bool
	}{
		{name: "ok", secret: "s3cret", level: zapcore.InfoLevel},
		{name: "err. default secret", secret: auth.DefaultSecret, level: zapcore.InfoLevel, wantErr: auth.ErrWeakSecret},
		{name: "err. empty secret", secret: "", level: zapcore.WarnLevel, wantErr: auth.ErrWeakSecret},
		{name: "debug warns", secret: auth.DefaultSecret, level: zapcore.DebugLevel, wantWarn: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var cfg config.Config
			cfg.Session.Secret = tt.secret
			cfg.Log.LogLevel = tt.level
			core, logs := observer.New(zapcore.DebugLevel)

			err := checkSession(&cfg, zap.New(core))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.wantWarn, logs.FilterMessage("insecure session secret, set SESSION_SECRET").Len() == 1)
		})
	}
}
