package main

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/civicvoice/civicvoice/client-go/internal/devserver"
	"github.com/civicvoice/civicvoice/client-go/internal/models"
	"github.com/civicvoice/civicvoice/client-go/pkg/logger"
	"github.com/civicvoice/civicvoice/client-go/pkg/metrics"
)

// Local stand-in for the portal backend. Seeds one citizen account so the
// CLI can log in immediately:
//
//	email: citizen@example.com  password: civicvoice
func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))

	port := os.Getenv("DEVSERVER_PORT")
	if port == "" {
		port = "8080"
	}

	srv := devserver.New(devserver.Config{
		JWTSecret: os.Getenv("DEVSERVER_JWT_SECRET"),
		AccessTTL: 15 * time.Minute,
	})
	if _, err := srv.Seed(models.UserIdentity{
		FirstName: "Chantal",
		LastName:  "Ingabire",
		Email:     "citizen@example.com",
		Role:      models.Role{Name: models.RoleCitizen},
	}, "civicvoice"); err != nil {
		logger.Fatalf("seed account: %v", err)
	}

	reg := prometheus.NewRegistry()
	metrics.RegisterCollectors(reg)

	root := http.NewServeMux()
	root.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	root.Handle("/", srv.Engine())

	logger.Infof("devserver listening on :%s", port)
	if err := http.ListenAndServe(":"+port, root); err != nil {
		logger.Fatalf("devserver: %v", err)
	}
}
