package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sprinkle-app/sprinkle-go/pkg/bill"
	"github.com/sprinkle-app/sprinkle-go/pkg/prettylog"
	"github.com/sprinkle-app/sprinkle-go/pkg/seal"
	"github.com/sprinkle-app/sprinkle-go/pkg/sui"
	"github.com/sprinkle-app/sprinkle-go/pkg/util"
	"github.com/sprinkle-app/sprinkle-go/pkg/zklogin"
	zkloginapi "github.com/sprinkle-app/sprinkle-go/pkg/zklogin/api"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func main() {
	godotenv.Load()

	if os.Getenv("PRETTY_LOGS") != "" {
		slog.SetDefault(slog.New(prettylog.NewHandler(slog.LevelDebug)))
	} else {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}

	config, err := LoadConfig(util.GetEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal(err)
	}

	masterSeed := os.Getenv("MASTER_SEED")
	saltDeriver, err := zklogin.NewSaltDeriver(masterSeed)
	if err != nil {
		log.Fatal("MASTER_SEED must be set: ", err)
	}

	proverKey := os.Getenv("PROVER_BACKEND_KEY")
	if proverKey == "" {
		log.Fatal("PROVER_BACKEND_KEY not set")
	}

	sealer, err := seal.NewSealer(
		seal.WithDecryptionKeyFromEnv(os.Getenv("JWE_PRIVATE_KEY_B64")),
	)
	if err != nil {
		log.Fatal(err)
	}

	suiClient := sui.NewClient(config.FullnodeURL)
	prover := zklogin.NewProverClient(config.ProverURL, proverKey)
	generator := zklogin.NewSessionGenerator(suiClient)
	sessionTTL := time.Duration(config.SessionTTL)
	authenticator := zklogin.NewAuthenticator(saltDeriver, prover, sealer, sessionTTL)
	signer := zklogin.NewSigner(sealer, seal.UnsealOptions{
		ValidateExpiration: true,
		MaxAge:             sessionTTL,
	})

	root := echo.New()
	root.HideBanner = true
	root.Validator = &CustomValidator{validator: validator.New()}
	root.Use(middleware.Recover())

	zkAPI := zkloginapi.NewAPI(generator, authenticator, signer, config.Provider)
	if config.InsecureCookies {
		zkAPI.WithInsecureCookies()
	}
	zkAPI.MountRoutes(root.Group("/zklogin"))

	// signing capability of the caller's zkLogin session, handed to the
	// bill service per request
	signerFor := func(c echo.Context) (bill.SignFunc, error) {
		cookie, err := c.Cookie(zkloginapi.CookieName)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusUnauthorized, "Session data not found. Please try signing in again.")
		}
		session, err := signer.ResolveSession(cookie.Value)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusUnauthorized, "Session expired. Please sign in again.")
		}
		return func(txBytes []byte) (string, error) {
			signature, err := signer.SignTransaction(session, txBytes)
			if err != nil {
				return "", err
			}
			return signature.Encode()
		}, nil
	}

	billService := bill.NewService(bill.NewMemoryStore(), suiClient, config.PackageID)
	billAPI := bill.NewAPI(billService, signerFor)
	billAPI.MountRoutes(root.Group(""))

	root.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	root.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	addr := util.GetEnv("SERVER_ADDR", config.ListenAddr)
	slog.Info("Starting sprinkle-server", "addr", addr)
	log.Fatal(http.ListenAndServe(addr, root))
}
