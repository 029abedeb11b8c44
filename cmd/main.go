package main

import (
	"context"
	"fmt"
	"net/http"
	_ "time/tzdata"

	"github.com/gorilla/mux"
	cron "github.com/robfig/cron/v3"
	"github.com/rs/cors"
	"github.com/sendgrid/sendgrid-go"
	twilio "github.com/twilio/twilio-go"

	"github.com/Recursion-Labs/Brickchain-sub001/internal/app"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/config"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/controllers"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/ledger"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/middleware"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/repositories"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/routes"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/services"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/utils"
)

func main() {
	utils.InitLogger(config.AppName)
	cfg := config.LoadConfig()

	application, err := app.NewApp(cfg)
	if err != nil {
		utils.Logger.Fatal("Failed to initialize estate-service:", err)
	}
	defer application.Close()

	propRepo := repositories.NewPropertyRepository(application.DB)
	vrRepo := repositories.NewVerificationRequestRepository(application.DB)
	listingRepo := repositories.NewListingRepository(application.DB)
	bidRepo := repositories.NewBidRepository(application.DB)
	escrowRepo := repositories.NewEscrowRepository(application.DB)
	auditRepo := repositories.NewAuditLogRepository(application.DB)

	var gateway ledger.Gateway
	if cfg.LDFlag_LedgerDryRun {
		utils.Logger.Warn("ledger_dry_run enabled; settlement calls are no-ops")
		gateway = ledger.NewDryRunGateway()
	} else {
		gateway, err = ledger.NewHTTPGateway(cfg.LedgerBaseURL, cfg.LedgerAPIKey, cfg.LedgerTimeout, 2, 0)
		if err != nil {
			utils.Logger.Fatal("Failed to initialize ledger gateway:", err)
		}
	}

	twClient := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.TwilioAccountSID,
		Password: cfg.TwilioAuthToken,
	})
	sgClient := sendgrid.NewSendClient(cfg.SendGridAPIKey)
	notifier := services.NewNotificationService(cfg, twClient, sgClient)

	propertyService := services.NewPropertyService(cfg, propRepo, vrRepo, auditRepo, gateway)
	marketService := services.NewMarketplaceService(cfg, propRepo, listingRepo, bidRepo, notifier)
	escrowService := services.NewEscrowService(cfg, escrowRepo, listingRepo, bidRepo, gateway, notifier)
	sweeper := services.NewSweeperService(cfg, listingRepo, vrRepo)

	if cfg.LDFlag_SeedDbWithTestData {
		if err := app.SeedTestData(context.Background(), propRepo, vrRepo, listingRepo, bidRepo); err != nil {
			utils.Logger.WithError(err).Fatal("Failed to seed test data")
		}
		utils.Logger.Info("Seeded test data successfully")
	}

	propertiesController := controllers.NewPropertiesController(propertyService)
	marketController := controllers.NewMarketplaceController(marketService)
	escrowController := controllers.NewEscrowController(escrowService)
	healthController := controllers.NewHealthController(application)

	router := mux.NewRouter()

	// Public
	router.HandleFunc(routes.Health, healthController.HealthCheckHandler).Methods(http.MethodGet)

	secured := router.NewRoute().Subrouter()
	secured.Use(middleware.AuthMiddleware(cfg.RSAPublicKey))

	secured.HandleFunc(routes.PropertiesBase, propertiesController.RegisterPropertyHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.PropertiesMy, propertiesController.ListMyPropertiesHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.PropertyByID, propertiesController.GetPropertyHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.PropertyByID, propertiesController.DeletePropertyHandler).Methods(http.MethodDelete)
	secured.HandleFunc(routes.VerificationRequest, propertiesController.RequestVerificationHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.VerificationStart, propertiesController.StartVerificationHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.VerificationResolve, propertiesController.ResolveVerificationHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.PropertiesTokenize, propertiesController.TokenizePropertyHandler).Methods(http.MethodPost)

	secured.HandleFunc(routes.ListingsBase, marketController.CreateListingHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.ListingByID, marketController.GetListingHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.ListingBids, marketController.ListBidsHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.ListingCancel, marketController.CancelListingHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.BidsBase, marketController.PlaceBidHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.BidsAccept, marketController.AcceptBidHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.BidsReject, marketController.RejectBidHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.BidsWithdraw, marketController.WithdrawBidHandler).Methods(http.MethodPost)

	secured.HandleFunc(routes.EscrowsBase, escrowController.DepositEscrowHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.EscrowByID, escrowController.GetEscrowHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.EscrowRelease, escrowController.ReleaseEscrowHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.EscrowDispute, escrowController.FileDisputeHandler).Methods(http.MethodPost)

	secured.HandleFunc(routes.AdminPropertyStatus, propertiesController.OverrideStatusHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.AdminEscrowResolve, escrowController.ResolveDisputeHandler).Methods(http.MethodPost)

	c := cron.New()
	sweepSpec := fmt.Sprintf("@every %s", cfg.SweepInterval)
	_, sweepErr := c.AddFunc(sweepSpec, func() {
		if e := sweeper.RunExpirySweep(context.Background()); e != nil {
			utils.Logger.WithError(e).Error("Expiry sweep failed")
		}
	})
	if sweepErr != nil {
		utils.Logger.WithError(sweepErr).Fatal("Failed to schedule expiry sweep cron")
	}
	c.Start()

	allowedOrigins := []string{cfg.AppUrl}
	if !cfg.LDFlag_CORSHighSecurity {
		allowedOrigins = append(allowedOrigins, "http://localhost:3000")
	}

	co := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	utils.Logger.Infof("Starting %s on port: %s", cfg.AppName, cfg.AppPort)
	if err := http.ListenAndServe(":"+cfg.AppPort, co.Handler(router)); err != nil {
		utils.Logger.Fatal("estate-service failed to start:", err)
	}
}
