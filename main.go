package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"pizza-fulfillment/config"
	"pizza-fulfillment/db"
	"pizza-fulfillment/notify"
	"pizza-fulfillment/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	if err := db.Init(cfg.DB); err != nil {
		fmt.Fprintln(os.Stderr, "db:", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()

	// Optional auto-migration for fresh databases. Set AUTO_MIGRATE=1 to enable.
	if v := strings.TrimSpace(os.Getenv("AUTO_MIGRATE")); v == "1" || strings.EqualFold(v, "true") {
		if err := applyMigrations(ctx, false); err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "migrate":
		runMigrate(ctx, cfg)
	case "dispatch":
		runDispatch(ctx, cfg, os.Args[2:])
	case "dispose-expired":
		runDisposeExpired(ctx)
	case "low-stock":
		runLowStock(ctx)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: pizza-fulfillment <migrate|dispatch|dispose-expired|low-stock>")
	fmt.Fprintln(os.Stderr, "  migrate                           apply embedded migrations")
	fmt.Fprintln(os.Stderr, "  dispatch <shipperID> <orderID>... create an optimized delivery route")
	fmt.Fprintln(os.Stderr, "  dispose-expired                   write off batches past their expiry date")
	fmt.Fprintln(os.Stderr, "  low-stock                         list materials at or below warning limit")
}

func runMigrate(ctx context.Context, cfg *config.Config) {
	if err := applyMigrations(ctx, true); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	// Seed the depot location from env on first run.
	if err := services.InitStoreLocation(ctx, cfg.Store.Lat, cfg.Store.Lng); err != nil {
		fmt.Fprintln(os.Stderr, "store location:", err)
		os.Exit(1)
	}
}

func runDispatch(ctx context.Context, cfg *config.Config, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "dispatch: need a shipper id and at least one order id")
		os.Exit(2)
	}
	shipperID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dispatch: invalid shipper id:", args[0])
		os.Exit(2)
	}
	orderIDs := make([]int64, 0, len(args)-1)
	for _, a := range args[1:] {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			fmt.Fprintln(os.Stderr, "dispatch: invalid order id:", a)
			os.Exit(2)
		}
		orderIDs = append(orderIDs, id)
	}

	rc := services.NewRouteClient(cfg.Routing)
	delivery, err := services.CreateDeliveryRoute(ctx, rc, shipperID, orderIDs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dispatch:", err)
		os.Exit(1)
	}
	fmt.Printf("Delivery #%d created with %d stops.\n", delivery.ID, len(delivery.Steps))
	for _, s := range delivery.Steps {
		fmt.Printf("  %d. order #%d  %.1f km  %ds\n", s.StepNumber, s.OrderID, s.Distance/1000, s.Duration)
	}

	notifier, err := notify.New(cfg.Telegram.NotifyToken)
	if err != nil {
		fmt.Fprintln(os.Stderr, "notify:", err)
		return
	}
	shipper, err := services.GetStaff(ctx, shipperID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "notify:", err)
		return
	}
	if shipper.TelegramChatID != nil {
		if err := notifier.RouteAssigned(*shipper.TelegramChatID, delivery); err != nil {
			fmt.Fprintln(os.Stderr, "notify:", err)
		}
	}
}

func runDisposeExpired(ctx context.Context) {
	n, err := services.DisposeExpired(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dispose-expired:", err)
		os.Exit(1)
	}
	fmt.Printf("%d expired batches disposed.\n", n)
}

func runLowStock(ctx context.Context) {
	materials, err := services.LowStockMaterials(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "low-stock:", err)
		os.Exit(1)
	}
	if len(materials) == 0 {
		fmt.Println("No materials below warning limit.")
		return
	}
	for _, m := range materials {
		fmt.Printf("%s: %s %s available (warning limit %s)\n",
			m.Material.Name, m.Available.String(), m.Material.Unit, m.Material.WarningLimit.String())
	}
}
