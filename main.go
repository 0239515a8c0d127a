package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/memory/v2"
	"github.com/gofiber/storage/redis/v3"
	"github.com/khanghh/supagate/internal/audit"
	"github.com/khanghh/supagate/internal/auth"
	"github.com/khanghh/supagate/internal/common"
	"github.com/khanghh/supagate/internal/config"
	"github.com/khanghh/supagate/internal/handlers/api"
	"github.com/khanghh/supagate/internal/mail"
	"github.com/khanghh/supagate/internal/middlewares"
	"github.com/khanghh/supagate/internal/middlewares/sessions"
	"github.com/khanghh/supagate/internal/middlewares/twofa"
	"github.com/khanghh/supagate/internal/settings"
	"github.com/khanghh/supagate/internal/store"
	"github.com/khanghh/supagate/internal/twofactor"
	"github.com/khanghh/supagate/internal/users"
	"github.com/khanghh/supagate/model"
	"github.com/khanghh/supagate/params"
	goredis "github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

var (
	app       *cli.App
	gitCommit string
	gitDate   string
	gitTag    string
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: "config.yaml",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
	usernameFlag = &cli.StringFlag{
		Name:     "username",
		Usage:    "Forum username",
		Required: true,
	}
	revokeFlag = &cli.BoolFlag{
		Name:  "revoke",
		Usage: "Revoke instead of grant",
	}
	permissionFlag = &cli.StringFlag{
		Name:  "permission",
		Usage: "Permission name",
		Value: params.PermissionRequire2FA,
	}
)

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "supagate - Supabase login and two-factor authentication for forums"
	app.Flags = []cli.Flag{
		configFileFlag,
		debugFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name: "version",
			Action: func(ctx *cli.Context) error {
				fmt.Println(params.VersionWithCommit(gitCommit, gitDate))
				return nil
			},
		},
		{
			Name:  "admin",
			Usage: "Grant or revoke forum administrator rights",
			Flags: []cli.Flag{usernameFlag, revokeFlag},
			Action: func(ctx *cli.Context) error {
				return withUser(ctx, func(userService *users.UserService, user *model.User) error {
					return userService.SetAdmin(ctx.Context, user.ID, !ctx.Bool(revokeFlag.Name))
				})
			},
		},
		{
			Name:  "permission",
			Usage: "Grant or revoke a user permission",
			Flags: []cli.Flag{usernameFlag, permissionFlag, revokeFlag},
			Action: func(ctx *cli.Context) error {
				return withUser(ctx, func(userService *users.UserService, user *model.User) error {
					name := ctx.String(permissionFlag.Name)
					if ctx.Bool(revokeFlag.Name) {
						return userService.RevokePermission(ctx.Context, user.ID, name)
					}
					return userService.GrantPermission(ctx.Context, user.ID, name)
				})
			},
		},
	}
	app.Action = run
}

func mustInitLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func mustInitDatabase(dbConfig config.MySQLConfig) *gorm.DB {
	db, err := gorm.Open(mysql.Open(dbConfig.Dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   dbConfig.TablePrefix,
			SingularTable: true,
		},
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("Failed to access database pool", "error", err)
		os.Exit(1)
	}
	if dbConfig.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
	}
	if dbConfig.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
	}
	sqlDB.SetConnMaxIdleTime(dbConfig.ConnMaxIdleTime)
	sqlDB.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	if err := model.AutoMigrate(db); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}
	return db
}

func mustInitMailSender(mailCfg config.MailConfig) mail.MailSender {
	mail.SetDefaultFromAddress(mailCfg.From)
	switch mailCfg.Backend {
	case "log":
		return mail.LogMailSender{}
	case "smtp":
		sender, err := mail.NewSMTPMailSender(mail.SMTPConfig{
			Host:     mailCfg.SMTP.Host,
			Port:     mailCfg.SMTP.Port,
			Username: mailCfg.SMTP.Username,
			Password: mailCfg.SMTP.Password,
			TLS:      mailCfg.SMTP.TLS,
			CertFile: mailCfg.SMTP.CertFile,
			KeyFile:  mailCfg.SMTP.KeyFile,
			CAFile:   mailCfg.SMTP.CAFile,
		}, mailCfg.From)
		if err != nil {
			slog.Error("Could not initialize SMTP mail sender", "error", err)
			os.Exit(1)
		}
		return sender
	}
	slog.Error("Unsupported mail sender backend", "backend", mailCfg.Backend)
	os.Exit(1)
	return nil
}

// mustInitStorage returns the session storage and the hash store. Without a
// Redis URL both live in process memory and rdb is nil.
func mustInitStorage(redisCfg config.RedisConfig) (fiber.Storage, store.Storage, goredis.UniversalClient) {
	if redisCfg.URL == "" {
		slog.Warn("No redis url configured, sessions and two-factor state are kept in memory")
		return memory.New(), store.NewMemoryStorage(), nil
	}
	redisStorage := redis.New(redis.Config{
		URL:           redisCfg.URL,
		PoolSize:      redisCfg.PoolSize,
		IsClusterMode: redisCfg.ClusterMode,
	})
	return redisStorage, store.NewRedisStorage(redisStorage.Conn()), redisStorage.Conn()
}

func mustInitForumProxy(forumCfg config.ForumConfig) *api.ForumProxy {
	if forumCfg.UpstreamURL == "" {
		slog.Warn("No forum upstream configured, only gate endpoints are served")
		return nil
	}
	return api.NewForumProxy(forumCfg.UpstreamURL)
}

func setupAPIRoutes(
	router fiber.Router,
	config *config.Config,
	sessionConfig sessions.Config,
	settingsProvider *settings.StoreProvider,
	verifier *auth.SupabaseVerifier,
	userService *users.UserService,
	twoFactorService *twofactor.TwoFactorService,
	mailSender mail.MailSender) {

	var supabaseAdmin api.SupabaseAdmin
	if client := auth.NewSupabaseAdmin(auth.SupabaseAdminConfig{
		URL:            config.Supabase.URL,
		ServiceRoleKey: config.Supabase.ServiceRoleKey,
	}); client != nil {
		supabaseAdmin = client
	}

	// handlers
	var (
		authHandler      = api.NewAuthHandler(verifier, userService)
		twoFactorHandler = api.NewTwoFactorHandler(twoFactorService, mailSender)
		settingsHandler  = api.NewSettingsHandler(settingsProvider)
		supabaseHandler  = api.NewSupabaseHandler(userService, supabaseAdmin, config.Supabase.SocialProviders)
	)

	router.Use(sessions.New(sessionConfig))
	router.Use(middlewares.LoadSettings(settingsProvider))
	router.Use(middlewares.LoadActor(userService))
	router.Use(twofa.New(twofa.Config{}))
	api.SetupRoutes(router, authHandler, twoFactorHandler, settingsHandler, supabaseHandler, mustInitForumProxy(config.Forum))
}

func withUser(ctx *cli.Context, fn func(*users.UserService, *model.User) error) error {
	config, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		return err
	}
	mustInitLogger(config.Debug || ctx.IsSet(debugFlag.Name))

	db := mustInitDatabase(config.MySQL)
	userService := users.NewUserService(users.NewUserRepository(db))
	user, err := userService.GetUserByUsername(ctx.Context, ctx.String(usernameFlag.Name))
	if err != nil {
		return err
	}
	if err := fn(userService, user); err != nil {
		return err
	}
	slog.Info("User updated", "userID", user.ID, "username", user.Username)
	return nil
}

func run(ctx *cli.Context) error {
	config, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return err
	}

	mustInitLogger(config.Debug || ctx.IsSet(debugFlag.Name))

	mail.Initialize(mail.NewTemplateEngine(config.TemplateDir), fiber.Map{
		"forumTitle": config.ForumTitle,
		"baseURL":    config.BaseURL,
	})
	mailSender := mustInitMailSender(config.Mail)
	db := mustInitDatabase(config.MySQL)
	audit.Initialize(audit.NewAuditEventRepository(db))
	sessionStorage, cacheStorage, rdb := mustInitStorage(config.Redis)

	// services
	var (
		userService      = users.NewUserService(users.NewUserRepository(db))
		settingsProvider = settings.NewStoreProvider(cacheStorage, settings.Settings{
			Enable2FA:  config.TwoFactor.Enabled,
			Require2FA: config.TwoFactor.Required,
			ForumTitle: config.ForumTitle,
		})
		twoFactorService = twofactor.NewTwoFactorService(userService,
			twofactor.WithAttemptLimit(cacheStorage, config.TwoFactor.MaxFailedAttempts, config.TwoFactor.AttemptWindow),
		)
		verifier = auth.NewSupabaseVerifier(auth.SupabaseConfig{
			JWTSecret: config.Supabase.JWTSecret,
			Issuer:    config.Supabase.Issuer,
			Audience:  config.Supabase.Audience,
		}, time.Now)
	)

	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		BodyLimit:     params.ServerBodyLimit,
		IdleTimeout:   params.ServerIdleTimeout,
		ReadTimeout:   params.ServerReadTimeout,
		WriteTimeout:  params.ServerWriteTimeout,
		ErrorHandler:  middlewares.ErrorHandler,
	})

	router.Use(recover.New())
	router.Use(logger.New())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(config.AllowOrigins, ", "),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: len(config.AllowOrigins) > 0,
	}))

	setupAPIRoutes(
		router,
		config,
		sessions.Config{
			Storage:        sessionStorage,
			SessionMaxAge:  config.Session.SessionMaxAge,
			CookieSecure:   config.Session.CookieSecure,
			CookieHttpOnly: config.Session.CookieHttpOnly,
			CookieName:     config.Session.CookieName,
			KeyPrefix:      params.SessionKeyPrefix,
		},
		settingsProvider,
		verifier,
		userService,
		twoFactorService,
		mailSender,
	)

	healthCheckCtx, term := context.WithCancel(ctx.Context)
	done := make(chan struct{})
	go common.StartHealthCheckServer(healthCheckCtx, done, rdb, db)
	defer func() {
		term()
		<-done
	}()
	return router.Listen(config.ListenAddr)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
