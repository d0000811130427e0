package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nsqio/go-nsq"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/govault/internal/pkg/idempotency"
	"github.com/shandysiswandi/govault/internal/pkg/mail"
	"github.com/shandysiswandi/govault/internal/pkg/messaging"
	"github.com/shandysiswandi/govault/internal/pkg/migration"
	"github.com/shandysiswandi/govault/internal/pkg/storage"
	"github.com/shandysiswandi/govault/internal/shared/session"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// waitReady pings a dependency until it answers. Containers started next to
// the service are often a few seconds behind it.
func (a *App) waitReady(name string, ping func(context.Context) error) error {
	b := retry.NewFibonacci(500 * time.Millisecond)
	b = retry.WithCappedDuration(5*time.Second, b)
	b = retry.WithMaxRetries(a.config.GetUint64("app.startup.max_retries"), b)

	return retry.Do(a.ctx, b, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := ping(ctx); err != nil {
			slog.WarnContext(ctx, "dependency not ready", "name", name, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (a *App) initDatabase() error {
	dsn := a.config.GetString("database.url")
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}

	pc.MaxConns = a.config.GetInt32("database.pool.max_conns")
	pc.MinConns = a.config.GetInt32("database.pool.min_conns")
	pc.MaxConnLifetime = a.config.GetSecond("database.pool.max_conn_lifetime_seconds")
	pc.MaxConnIdleTime = a.config.GetSecond("database.pool.max_conn_idle_seconds")
	pc.HealthCheckPeriod = a.config.GetSecond("database.pool.health_check_period_seconds")

	pool, err := pgxpool.NewWithConfig(a.ctx, pc)
	if err != nil {
		return err
	}
	a.onClose("database", func(context.Context) error { pool.Close(); return nil })

	if err := a.waitReady("database", pool.Ping); err != nil {
		return err
	}
	if a.config.GetBool("database.migrate") {
		if err := migration.Up(dsn); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	a.dbConn = pool
	return nil
}

func (a *App) initCache() error {
	opt, err := redis.ParseURL(a.config.GetString("redis.url"))
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}

	rdb := redis.NewClient(opt)
	a.onClose("redis", func(context.Context) error { return rdb.Close() })

	if err := a.waitReady("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() }); err != nil {
		return err
	}

	a.cacheConn = rdb
	a.idemp = idempotency.New(rdb)
	return nil
}

func (a *App) initSession() error {
	a.session = session.New(session.Config{
		Redis:         a.cacheConn,
		JWT:           a.jwt,
		HMAC:          a.hmac,
		Tokens:        a.token,
		Clock:         a.clock,
		Instrument:    a.ins,
		PreSessionTTL: a.config.GetDuration("modules.identity.pre_session_ttl"),
	})
	return nil
}

func (a *App) initMail() error {
	m, err := mail.NewSMTP(mail.SMTPConfig{
		Host:     a.config.GetString("mail.host"),
		Port:     a.config.GetInt("mail.port"),
		Username: a.config.GetString("mail.username"),
		Password: a.config.GetString("mail.password"),
		From:     a.config.GetString("mail.from"),
		Timeout:  a.config.GetSecond("mail.timeout_seconds"),

		InsecureSkipVerify: a.config.GetBool("mail.insecure_skip_verify"),
	})
	if err != nil {
		return err
	}

	a.mail = m
	a.onClose("mail", func(context.Context) error { return m.Close() })
	return nil
}

// gcsOptions collects client options from storage.gcs.*. Explicit
// credentials win over ambient ones; without_auth targets an emulator.
func (a *App) gcsOptions() ([]option.ClientOption, error) {
	var opts []option.ClientOption
	if a.config.GetBool("storage.gcs.without_auth") {
		opts = append(opts, option.WithoutAuthentication())
	}

	credsJSON := a.config.GetBinary("storage.gcs.credentials_json")
	if path := strings.TrimSpace(a.config.GetString("storage.gcs.credentials_file")); path != "" && len(credsJSON) == 0 {
		b, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config
		if err != nil {
			return nil, fmt.Errorf("gcs credentials file: %w", err)
		}
		credsJSON = b
	}
	if len(credsJSON) > 0 {
		creds, err := google.CredentialsFromJSON(a.ctx, credsJSON, gcs.ScopeFullControl)
		if err != nil {
			return nil, fmt.Errorf("gcs credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}

	if v := strings.TrimSpace(a.config.GetString("storage.gcs.endpoint")); v != "" {
		opts = append(opts, option.WithEndpoint(v))
	}
	if v := strings.TrimSpace(a.config.GetString("storage.gcs.user_agent")); v != "" {
		opts = append(opts, option.WithUserAgent(v))
	}
	return opts, nil
}

func (a *App) initStorage() error {
	driver := a.config.GetString("storage.driver")
	str := func(key string) string { return strings.TrimSpace(a.config.GetString(key)) }

	var gcsClient *gcs.Client
	if strings.EqualFold(strings.TrimSpace(driver), storage.DriverGCS) {
		opts, err := a.gcsOptions()
		if err != nil {
			return err
		}
		if gcsClient, err = gcs.NewClient(a.ctx, opts...); err != nil {
			return fmt.Errorf("gcs client: %w", err)
		}
	}

	stg, err := storage.NewFromDriver(a.ctx, driver, storage.FactoryOptions{
		S3: storage.S3Options{
			Region:       str("storage.s3.region"),
			Endpoint:     str("storage.s3.endpoint"),
			AccessKey:    str("storage.s3.access_key"),
			SecretKey:    str("storage.s3.secret_key"),
			SessionToken: str("storage.s3.session_token"),
			UsePathStyle: a.config.GetBool("storage.s3.use_path_style"),
		},
		GCS: storage.GCSOptions{
			Client:         gcsClient,
			GoogleAccessID: str("storage.gcs.signer_access_id"),
			PrivateKey:     a.config.GetBinary("storage.gcs.signer_private_key"),
		},
		MinIO: storage.MinIOOptions{
			Region:       str("storage.minio.region"),
			Endpoint:     str("storage.minio.endpoint"),
			AccessKey:    str("storage.minio.access_key"),
			SecretKey:    str("storage.minio.secret_key"),
			SessionToken: str("storage.minio.session_token"),
			UseSSL:       a.config.GetBool("storage.minio.use_ssl"),
		},
	})
	if err != nil {
		return fmt.Errorf("driver %q: %w", driver, err)
	}

	a.storage = stg
	a.onClose("storage", func(context.Context) error { return stg.Close() })
	return nil
}

func (a *App) nsqConfig(prefix string) *nsq.Config {
	cfg := nsq.NewConfig()
	key := func(k string) string { return prefix + "." + k }

	if n := a.config.GetInt(key("max_in_flight")); n > 0 {
		cfg.MaxInFlight = n
	}
	for k, dst := range map[string]*time.Duration{
		"dial_timeout_seconds":  &cfg.DialTimeout,
		"read_timeout_seconds":  &cfg.ReadTimeout,
		"write_timeout_seconds": &cfg.WriteTimeout,
	} {
		if d := a.config.GetSecond(key(k)); d > 0 {
			*dst = d
		}
	}
	if n := a.config.GetUint16(key("max_attempts")); n > 0 {
		cfg.MaxAttempts = n
	}
	if d := a.config.GetSecond(key("lookupd_poll_interval_seconds")); d > 0 {
		cfg.LookupdPollInterval = d
	}
	if d := a.config.GetSecond(key("default_requeue_delay_seconds")); d > 0 {
		cfg.DefaultRequeueDelay = d
	}
	if d := a.config.GetSecond(key("max_requeue_delay_seconds")); d > 0 {
		cfg.MaxRequeueDelay = d
	}
	return cfg
}

func (a *App) initMessaging() error {
	var pubsubOpts []option.ClientOption
	if v := strings.TrimSpace(a.config.GetString("messaging.pubsub.endpoint")); v != "" {
		pubsubOpts = append(pubsubOpts, option.WithEndpoint(v), option.WithoutAuthentication())
	}

	driver := a.config.GetString("messaging.driver")
	client, err := messaging.NewFromDriver(a.ctx, driver, messaging.FactoryOptions{
		NSQ: messaging.NSQConfig{
			ProducerAddr:   a.config.GetString("messaging.nsq.producer_addr"),
			NSQDAddrs:      a.config.GetArray("messaging.nsq.consumer_nsqd_addrs"),
			LookupdAddrs:   a.config.GetArray("messaging.nsq.consumer_lookupd_addrs"),
			ProducerConfig: a.nsqConfig("messaging.nsq.producer_config"),
			ConsumerConfig: a.nsqConfig("messaging.nsq.consumer_config"),
		},
		NATS: messaging.NATSConfig{
			URL: a.config.GetString("messaging.nats.url"),
			Options: []nats.Option{
				nats.Name(a.config.GetString("messaging.nats.name")),
				nats.MaxReconnects(a.config.GetInt("messaging.nats.max_reconnects")),
				nats.Timeout(a.config.GetSecond("messaging.nats.timeout_seconds")),
				nats.ReconnectWait(a.config.GetSecond("messaging.nats.reconnect_wait_seconds")),
				nats.PingInterval(a.config.GetSecond("messaging.nats.ping_interval_seconds")),
				nats.MaxPingsOutstanding(a.config.GetInt("messaging.nats.max_pings_outstanding")),
				nats.RetryOnFailedConnect(a.config.GetBool("messaging.nats.retry_on_failed_connect")),
			},
		},
		Kafka: messaging.KafkaConfig{
			Brokers: a.config.GetArray("messaging.kafka.brokers"),
			Dialer: &kafka.Dialer{
				ClientID: a.config.GetString("messaging.kafka.client_id"),
				Timeout:  a.config.GetSecond("messaging.kafka.dial_timeout_seconds"),
			},
		},
		PubSub: messaging.PubSubConfig{
			ProjectID:     a.config.GetString("messaging.pubsub.project_id"),
			ClientOptions: pubsubOpts,
		},
	})
	if err != nil {
		return fmt.Errorf("driver %q: %w", driver, err)
	}

	a.messaging = client
	a.onClose("messaging", func(context.Context) error { return client.Close() })
	return nil
}
