package application

import (
	"context"
	"fmt"

	"emailer/internal/application/common"
	"emailer/internal/application/repo"
	"emailer/internal/application/service"
	use_cases "emailer/internal/application/use-cases"
	"emailer/internal/controllers/cron"
	"emailer/internal/controllers/handler"
	"emailer/internal/controllers/listener"
	"emailer/internal/transport/mailer"
	"emailer/pkg/broker"
	"emailer/pkg/config"
	"emailer/pkg/db"
	"emailer/pkg/httpclient"
	"emailer/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type App struct {
	ctx            context.Context
	conf           *config.Config
	logger         *zap.SugaredLogger
	postgres       *db.Postgres
	httpServer     *fiber.App
	kafka          *broker.KafkaBroker
	cronController *cron.Controller
}

func NewApp(
	ctx context.Context,
	conf *config.Config,
	logger *zap.SugaredLogger,
	postgres *db.Postgres,
	httpServer *fiber.App,
	kafkaBroker *broker.KafkaBroker,
	m *metrics.Metrics) *App {
	//Логируем версию приложения
	logger.Infof("Запуск Emailer Service версии: %s", common.Version)

	go func() {
		<-ctx.Done()
		logger.Info("закрытие consumer group")
		kafkaBroker.ConsumerGroup.Close()
		logger.Info("закрытие consumer group: done")
	}()

	store := repo.NewRepo(postgres, logger)
	lock := repo.NewLockRepo(postgres, conf.Cron.LockOwner, logger)

	httpClient := httpclient.NewClient(conf.HTTPClient)
	retryClient := httpclient.NewRetryClient(httpClient, conf.HTTPClient.MaxRetries, logger)
	mailClient := mailer.NewClient(conf.Mail, retryClient, logger)

	quota := service.NewEmailQuota(store)
	srv := service.NewEmailService(store, mailClient, quota, kafkaBroker, logger, m)
	uc := use_cases.NewUseCase(srv, logger)
	h := handler.NewEmailHandler(uc, logger)
	r := handler.NewRouter(h, httpServer, conf, logger)

	// Инициализация cron контроллера
	cronController := cron.NewController(ctx, logger)
	if err := cronController.RegisterOutboxJobs(uc, lock, conf.Cron); err != nil {
		logger.Fatalf("не удалось зарегистрировать cron задачи: %v", err)
	}
	cronController.Start()

	r.RegisterRouter()

	app := &App{
		ctx:            ctx,
		conf:           conf,
		logger:         logger,
		postgres:       postgres,
		httpServer:     httpServer,
		kafka:          kafkaBroker,
		cronController: cronController,
	}

	go app.runConsumer(ctx, logger, uc, kafkaBroker, m)

	return app
}

func (a *App) Run() error {
	return a.httpServer.Listen(fmt.Sprintf(":%s", a.conf.Server.Port))
}

func (a *App) Shutdown() error {
	// Останавливаем cron задачи
	if a.cronController != nil {
		a.cronController.Stop()
	}
	return a.httpServer.Shutdown()
}

func (a *App) runConsumer(ctx context.Context, logger *zap.SugaredLogger, usecase use_cases.UseCaser, kafkaBroker *broker.KafkaBroker, m *metrics.Metrics) {
	logger.Infof("🚀 Запуск consumer для топика: %s", kafkaBroker.ConsumerTopic)

	kafkaBrokerConsumer := listener.NewKafkaBrokerConsumer(usecase, logger, m)

	for {
		logger.Infof("🔄 Попытка подключения к consumer group...")
		err := kafkaBroker.ConsumerGroup.Consume(ctx, []string{kafkaBroker.ConsumerTopic}, kafkaBrokerConsumer)
		if err != nil {
			logger.Errorf("Ошибка consumer: %v", err)
		}
		if ctx.Err() != nil {
			logger.Info("Consumer остановлен по контексту")
			return
		}
	}
}
