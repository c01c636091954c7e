package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/infra/cache"
	"app/internal/infra/db"
	infraRepo "app/internal/infra/repository"
	"app/internal/mailer"
	"app/internal/otp"
	"app/internal/server"
	"app/internal/token"
	"app/internal/usecase"
	"app/internal/validator"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
)

func main() {
	// .envは無ければ無いで良い（本番は環境変数直指定）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.OTP{},
		&model.AuditLog{},
	); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	//Redis接続（deny-listとセッションマーカー）
	ctx := context.Background()
	redisClient, err := cache.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("redis connect: %v", err)
	}
	defer redisClient.Close()

	revocations := cache.NewRevocationCache(redisClient)

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	rtRepo := infraRepo.NewRefreshTokenRepository(gormDB)
	otpRepo := infraRepo.NewOTPRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	//token・OTPのサービス
	tokens := token.NewService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, revocations)
	otps := otp.NewEngine(otpRepo, mailer.NewLogMailer(), cfg.OTPTTL)

	//Usecase生成
	authUC := usecase.NewAuthUsecase(
		cfg,
		userRepo,
		rtRepo,
		auditRepo,
		revocations,
		txm,
		tokens,
		otps,
		validator.NewAuthValidator(),
	)

	//Handler生成
	authH := handler.NewAuthHandler(authUC, tokens)
	sessionH := handler.NewSessionHandler(authUC, tokens)

	srv := server.New(authH, sessionH)

	//Server起動
	go func() {
		if err := srv.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	//SIGINT/SIGTERMでgraceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}
