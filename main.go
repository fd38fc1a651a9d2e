package main

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/gofiber/contrib/fiberzap/v2"
	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hyperdxio/otel-config-go/otelconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"imgconv/api/rest"
	"imgconv/config"
	"imgconv/converter"
	img "imgconv/converter/image"
	"imgconv/preview"
	"imgconv/service"
	"imgconv/shared/log"
	"imgconv/shared/trace"
	"imgconv/source"
)

//	@title			Image converter
//	@version		1.0
//	@description	Batch image conversion API

// @BasePath	/
func main() {
	serviceConfig := config.New()

	ctx := context.Background()

	tp := trace.InitTrace()
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			slog.Error("Error shutting down tracer provider", "error", err)
		}
	}()

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry()
	if err != nil {
		slog.Error("Error configuring OpenTelemetry", "error", err)
	} else {
		defer otelShutdown()
	}

	level, err := zapcore.ParseLevel(serviceConfig.LogLevel)
	if err != nil {
		slog.Warn("Unknown log level, using info", "level", serviceConfig.LogLevel)
		level = zapcore.InfoLevel
	}

	logger := log.InitLogger(ctx, level)
	defer func() {
		if err = logger.Sync(); err != nil {
			slog.Error("Error syncing logger", "error", err)
		}
	}()

	var picker *source.S3Picker
	if serviceConfig.S3Enabled() {
		awsSession, err := session.NewSession(&aws.Config{
			Region:           aws.String(serviceConfig.S3Region),
			Credentials:      credentials.NewStaticCredentials(serviceConfig.S3AccessKey, serviceConfig.S3SecretKey, ""),
			Endpoint:         aws.String(serviceConfig.S3Endpoint),
			S3ForcePathStyle: aws.Bool(true),
		})
		if err != nil {
			logger.Error(err.Error())
			panic("Failed to create aws session")
		}
		picker = source.NewS3Picker(s3.New(awsSession), serviceConfig.S3Bucket, logger)
	}

	pre, err := img.NewPreprocessor(serviceConfig.Preprocessor, serviceConfig.PreprocessMaxBytes, logger)
	if err != nil {
		logger.Fatal("Failed to create preprocessor", zap.Error(err))
	}

	previews := preview.NewStore(serviceConfig.PreviewCapacity, serviceConfig.CacheTTL())
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go previews.Sweep(sweepCtx, serviceConfig.PreviewSweepInterval(), logger)

	transcoder := img.NewTranscoder(img.MustStrategy(logger), pre, previews, img.Options{
		Quality:                   serviceConfig.EncodeQuality,
		FallbackOnPreprocessError: serviceConfig.PreprocessFallback,
	}, logger)

	pipeline, err := converter.NewPipeline(transcoder, previews, serviceConfig.ChunkSize, logger)
	if err != nil {
		logger.Fatal("Failed to create pipeline", zap.Error(err))
	}

	urls := source.NewURLFetcher(serviceConfig.URLFetchTimeout(), serviceConfig.URLMaxBytes, logger)

	app := fiber.New(fiber.Config{
		AppName:      serviceConfig.AppName,
		BodyLimit:    serviceConfig.BodyLimitMB << 20,
		ErrorHandler: rest.ErrorHandler,
	})
	app.Use(
		recover.New(),
		otelfiber.Middleware(),
		fiberzap.New(fiberzap.Config{Logger: logger}),
		compress.New(compress.Config{Level: compress.LevelBestSpeed}),
		etag.New(),
		limiter.New(limiter.Config{
			Next: func(c *fiber.Ctx) bool {
				return c.IP() == "127.0.0.1"
			},
			Max:        serviceConfig.RateLimitMaxRequests,
			Expiration: serviceConfig.RateLimitDuration(),
		}),
		swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: "./docs/swagger.json",
			Path:     "docs",
			Title:    serviceConfig.AppName,
		}),
	)

	imageService := service.NewImageService(pipeline, previews, urls, picker, logger)

	rest.NewImageController(app, serviceConfig, imageService, logger)

	if err = app.Listen(":" + serviceConfig.Port); err != nil {
		logger.Panic(err.Error())
		return
	}
}
