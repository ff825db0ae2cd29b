package main

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/redis/go-redis/v9"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/adminauth"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/app"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/blob"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/cfg"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/log"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/rowstore"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

// awsClients loads the shared AWS config on first use so deployments without
// S3 or secret sources never need credentials.
type awsClients struct {
	ctx   context.Context
	appID string

	once sync.Once
	cfg  aws.Config
	err  error
}

func newAWSClients(ctx context.Context, appID string) *awsClients {
	return &awsClients{ctx: ctx, appID: appID}
}

func (c *awsClients) config() (aws.Config, error) {
	c.once.Do(func() {
		c.cfg, c.err = config.LoadDefaultConfig(c.ctx, config.WithAppID(c.appID))
		if c.err != nil {
			c.err = xerrors.Wrap(c.err, "load AWS config")
		}
	})
	return c.cfg, c.err
}

func (c *awsClients) S3() (*s3.Client, error) {
	ac, err := c.config()
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(ac), nil
}

func (c *awsClients) SSM() (*ssm.Client, error) {
	ac, err := c.config()
	if err != nil {
		return nil, err
	}
	return ssm.NewFromConfig(ac), nil
}

func (c *awsClients) KMS() (*kms.Client, error) {
	ac, err := c.config()
	if err != nil {
		return nil, err
	}
	return kms.NewFromConfig(ac), nil
}

func loadAdminSecret(ctx context.Context, conf cfg.App, clients *awsClients) (string, error) {
	src := adminauth.Source{
		Literal:       conf.AdminSecret,
		SSMParam:      conf.AdminSecretSSMParam,
		KMSCiphertext: conf.AdminSecretKMSCiphertext,
	}
	var err error
	switch src.Kind() {
	case "ssm":
		src.SSM, err = clients.SSM()
	case "kms":
		src.KMS, err = clients.KMS()
	}
	if err != nil {
		return "", err
	}

	secret, err := adminauth.LoadSecret(ctx, src)
	if err != nil {
		return "", err
	}
	log.FromContext(ctx).Info(ctx, "admin secret loaded", "source", src.Kind())
	return secret, nil
}

// openRowStore returns the configured store and a func releasing its
// connections. The redis store is pinged once so a bad address fails startup.
func openRowStore(ctx context.Context, conf cfg.App) (rowstore.Store, func(), error) {
	if conf.StoreBackend != cfg.StoreRedis {
		log.FromContext(ctx).Warn(ctx, "using in-memory row store, data is lost on restart")
		return rowstore.NewMemory(app.Indexes), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     conf.RedisAddr,
		Password: conf.RedisPassword,
		DB:       conf.RedisDB,
	})
	closeFn := func() { _ = client.Close() }
	store := rowstore.NewRedis(client, app.Indexes)
	if err := store.Ping(ctx); err != nil {
		closeFn()
		return nil, nil, xerrors.Wrapf(err, "connect redis %s", conf.RedisAddr)
	}
	return store, closeFn, nil
}

func openBlobStore(ctx context.Context, conf cfg.App, clients *awsClients) (blob.Store, error) {
	if conf.BlobBackend == cfg.BlobS3 {
		client, err := clients.S3()
		if err != nil {
			return nil, err
		}
		log.FromContext(ctx).Info(ctx, "serving resources from S3", "bucket", conf.S3Bucket, "prefix", conf.S3Prefix)
		return blob.NewS3(client, conf.S3Bucket, conf.S3Prefix)
	}
	log.FromContext(ctx).Info(ctx, "serving resources from directory", "dir", conf.BlobDir)
	return blob.NewDir(conf.BlobDir)
}
