package broker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"emailer/pkg/config"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

const (
	_consumerGroup = "emailer-consumer-group"
)

// KafkaBroker держит consumer group для очереди запросов на отправку.
// Продюсера у сервиса нет: состояние доставки живёт только в outbox-таблице.
type KafkaBroker struct {
	ConsumerTopic string
	ConsumerGroup sarama.ConsumerGroup
	Brokers       []string
	conf          config.Kafka
	logger        *zap.SugaredLogger
}

func NewKafkaBroker(conf config.Kafka, logger *zap.SugaredLogger) (*KafkaBroker, error) {
	logger.Debugf("Создание consumer group для brokers: %s", conf.Brokers)
	consumerGroup, err := newConsumerGroup(conf)
	if err != nil {
		logger.Errorf("Ошибка создания consumer group: %v", err)
		return nil, fmt.Errorf("%w", err)
	}
	logger.Infof("Consumer group создан успешно")

	broker := &KafkaBroker{
		ConsumerTopic: conf.ReaderTopic,
		ConsumerGroup: consumerGroup,
		Brokers:       strings.Split(conf.Brokers, ","),
		conf:          conf,
		logger:        logger,
	}
	logger.Infof("KafkaBroker создан. Consumer topic: %s", broker.ConsumerTopic)
	return broker, nil
}

// HealthCheck проверяет доступность Kafka брокера и ConsumerGroup.
//
// Не используем client.Partitions(): это требует права Describe в ACL, а у
// consumer-учётки может быть только Read. Проверяем инициализацию
// ConsumerGroup и доступность брокеров через минимальный клиент.
func (kb *KafkaBroker) HealthCheck(ctx context.Context) error {
	if kb.ConsumerGroup == nil {
		return fmt.Errorf("kafka consumer group is not initialized")
	}

	cfg := sarama.NewConfig()
	cfg.Net.DialTimeout = 2 * time.Second
	cfg.Net.ReadTimeout = 2 * time.Second
	cfg.Net.WriteTimeout = 2 * time.Second
	cfg.Metadata.Timeout = 2 * time.Second
	cfg.Metadata.Retry.Max = 1

	applySASLConfig(cfg, kb.conf)

	client, err := sarama.NewClient(kb.Brokers, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to kafka brokers: %w", err)
	}
	defer client.Close()

	if len(client.Brokers()) == 0 {
		return fmt.Errorf("no kafka brokers available")
	}

	return nil
}

func applySASLConfig(cfg *sarama.Config, conf config.Kafka) {
	if conf.ReaderUsr != "" && conf.ReaderUsrPwd != "" {
		cfg.Net.SASL.User = conf.ReaderUsr
		cfg.Net.SASL.Password = conf.ReaderUsrPwd
		cfg.Net.SASL.Enable = true
		cfg.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	}
}

func EnableSaramaZapLogs(base *zap.SugaredLogger) {
	logger := base.Named("sarama")
	sarama.Logger = &zapSarama{logger}
	logger.Info("Sarama logger initialized")
}

type zapSarama struct{ l *zap.SugaredLogger }

func (z *zapSarama) Print(v ...interface{})                 { z.l.Debug(v...) }
func (z *zapSarama) Printf(format string, v ...interface{}) { z.l.Debugf(format, v...) }
func (z *zapSarama) Println(v ...interface{})               { z.l.Debug(v...) }

func newConsumerGroup(conf config.Kafka) (sarama.ConsumerGroup, error) {
	kafkaConfig := sarama.NewConfig()
	applySASLConfig(kafkaConfig, conf)

	brokers := strings.Split(conf.Brokers, ",")

	consumer, err := sarama.NewConsumerGroup(brokers, _consumerGroup, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка при создании Kafka Consumer Group: %w", err)
	}

	return consumer, nil
}
