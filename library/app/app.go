package app

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Astemirdum/library-desk/library/config"
	"github.com/Astemirdum/library-desk/library/internal/handler"
	"github.com/Astemirdum/library-desk/library/internal/model"
	"github.com/Astemirdum/library-desk/library/internal/repository"
	"github.com/Astemirdum/library-desk/library/internal/server"
	"github.com/Astemirdum/library-desk/library/internal/service"
	"github.com/Astemirdum/library-desk/library/internal/upload"
	"github.com/Astemirdum/library-desk/library/migrations"
	"github.com/Astemirdum/library-desk/pkg/auth"
	"github.com/Astemirdum/library-desk/pkg/kafka"
	"github.com/Astemirdum/library-desk/pkg/logger"
	"github.com/Astemirdum/library-desk/pkg/postgres"
	"github.com/Astemirdum/library-desk/pkg/validate"
)

// Aliases of the internal model types used by the command-line entry point,
// which cannot import library/internal directly.
type (
	RegisterForm = model.RegisterForm
	MemberType   = model.MemberType
)

const MemberTypeStudent = model.MemberTypeStudent

func Run(cfg *config.Config) error {
	log := logger.NewLogger(cfg.Log, "library")
	if err := checkSession(cfg, log); err != nil {
		return err
	}
	db, err := postgres.NewPostgresDB(context.Background(), &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return errors.Wrap(err, "db init")
	}
	defer db.Close()

	repo, err := repository.NewRepository(db, log)
	if err != nil {
		return errors.Wrap(err, "repository")
	}
	publisher, err := kafka.NewPublisher(cfg.Kafka, log)
	if err != nil {
		return errors.Wrap(err, "kafka.NewPublisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("publisher close", zap.Error(err))
		}
	}()
	svc := service.NewService(repo, publisher, log)

	covers := upload.NewStore(cfg.Media.Dir, cfg.Media.MaxUploadSize, log)
	h := handler.New(svc, covers, auth.NewManager(cfg.Session), log)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))
	go func() {
		if err := srv.Run(); err != nil {
			log.Error("server run", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	termSig := <-sig

	log.Debug("Graceful shutdown", zap.Any("signal", termSig))

	closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err = srv.Stop(closeCtx); err != nil {
		log.DPanic("srv.Stop", zap.Error(err))
	}
	log.Info("Graceful shutdown finished")
	return nil
}

// checkSession refuses a guessable session secret; debug runs only get a warning.
func checkSession(cfg *config.Config, log *zap.Logger) error {
	err := cfg.Session.Validate()
	if err == nil {
		return nil
	}
	if cfg.Log.LogLevel == zapcore.DebugLevel {
		log.Warn("insecure session secret, set SESSION_SECRET", zap.Error(err))
		return nil
	}
	return errors.Wrap(err, "session")
}

// Migrate runs a goose command against the library database.
func Migrate(cfg *config.Config, command string, args ...string) error {
	db, err := postgres.Connect(context.Background(), &cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	return postgres.Migrate(db, migrations.MigrationFiles, command, args...)
}

// CreateMember registers an account from the command line, checked by the
// same rules as the registration page.
func CreateMember(ctx context.Context, cfg *config.Config, form model.RegisterForm) (model.Member, error) {
	if err := validate.NewCustomValidator().Validate(&form); err != nil {
		return model.Member{}, err
	}
	log := logger.NewLogger(cfg.Log, "library")
	db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return model.Member{}, errors.Wrap(err, "db init")
	}
	defer db.Close()

	repo, err := repository.NewRepository(db, log)
	if err != nil {
		return model.Member{}, errors.Wrap(err, "repository")
	}
	return service.NewService(repo, kafka.NopPublisher{}, log).Register(ctx, form)
}
