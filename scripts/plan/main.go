package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/FACorreiaa/go-travel-planner/config"
	"github.com/FACorreiaa/go-travel-planner/internal/api/geo"
	"github.com/FACorreiaa/go-travel-planner/internal/api/llm"
	"github.com/FACorreiaa/go-travel-planner/internal/api/planner"
	"github.com/FACorreiaa/go-travel-planner/internal/types"
)

var (
	destination = flag.String("destination", "", "trip destination, e.g. 杭州")
	origin      = flag.String("origin", "", "optional origin; enables route lookup")
	days        = flag.Int("days", 0, "trip length in days")
	preferences = flag.String("preferences", "", "comma or 、 separated preferences")
	language    = flag.String("language", "", "answer language tag, default zh")
	provider    = flag.String("provider", "", "override llm provider (openai|gemini)")
	model       = flag.String("model", "", "override model name")
	raw         = flag.Bool("raw", false, "print the provider document without normalizing")
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}
	flag.Parse()
	if *destination == "" {
		flag.Usage()
		os.Exit(2)
	}

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelInfo, TimeFormat: time.Kitchen}))

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *provider != "" {
		cfg.LLM.Provider = *provider
	}
	if *model != "" {
		cfg.LLM.Model = *model
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	completer, err := llm.NewCompleter(ctx, cfg.LLM)
	if err != nil {
		log.Fatalf("llm client: %v", err)
	}
	logger.Info("Calling provider", slog.String("provider", completer.Name()), slog.String("model", cfg.LLM.Model))

	service := planner.NewPlannerService(
		llm.NewGenerationService(completer, logger),
		geo.NewBaiduClient(cfg.Maps, http.DefaultClient, logger),
		logger,
	)

	req := types.TripRequest{
		Origin:      *origin,
		Destination: *destination,
		Preferences: types.ParsePreferences(*preferences),
		Language:    *language,
	}
	if *days > 0 {
		req.Days = days
	}

	if *raw {
		doc, err := service.GenerateRaw(ctx, req)
		if err != nil {
			log.Fatalf("generate: %v", err)
		}
		fmt.Println(doc)
		return
	}

	plan, err := service.GeneratePlan(ctx, req)
	if err != nil {
		log.Fatalf("generate: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(plan); err != nil {
		log.Fatalf("encode: %v", err)
	}
}
