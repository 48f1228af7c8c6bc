// Command dummy-pipeline is a development upstream that simulates voice turns.
// Each stage sleeps for a random share of the budget it was given, stages the
// gateway asked to disable are skipped, and a small share of turns fail.
package main

import (
	"math/rand/v2"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aman-churiwal/voice-qos/internal/logging"
	"github.com/aman-churiwal/voice-qos/internal/middleware"
	"github.com/aman-churiwal/voice-qos/internal/models"
	"github.com/aman-churiwal/voice-qos/internal/qos"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Share of the default budget each stage normally takes
var stages = []struct {
	name    string
	shareMs float64
	feature string
}{
	{"stt", 300, qos.FeatureCloudSTT},
	{"sentiment", 40, qos.FeatureSentimentAnalysis},
	{"memory", 60, qos.FeatureMemoryLookup},
	{"llm", 800, qos.FeatureCloudLLM},
	{"tts", 300, qos.FeatureHDSynthesis},
}

func main() {
	logger, err := logging.New(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logging.Global().Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	port := os.Getenv("PIPELINE_PORT")
	if port == "" {
		port = "3001"
	}

	failureRate := 0.02
	if v, err := strconv.ParseFloat(os.Getenv("PIPELINE_FAILURE_RATE"), 64); err == nil {
		failureRate = v
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(logger))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.NoRoute(func(c *gin.Context) {
		handleTurn(c, logger, failureRate)
	})

	logger.Info("Dummy pipeline starting", zap.String("port", port))
	if err := r.Run(":" + port); err != nil {
		logger.Fatal("Dummy pipeline stopped", zap.Error(err))
	}
}

func handleTurn(c *gin.Context, logger *zap.Logger, failureRate float64) {
	disabled := map[string]bool{}
	for _, f := range strings.Split(c.GetHeader(middleware.DisabledHeader), ",") {
		if f != "" {
			disabled[f] = true
		}
	}

	scale := 1.0
	if budget, err := strconv.ParseFloat(c.GetHeader(middleware.BudgetHeader), 64); err == nil && budget > 0 {
		scale = budget / 1500
	}

	start := time.Now()
	timings := make(map[string]int64, len(stages))
	for _, stage := range stages {
		if disabled[stage.feature] {
			timings[stage.name] = 0
			continue
		}
		// Somewhere between 30% and 120% of the stage share
		d := time.Duration(stage.shareMs * scale * (0.3 + 0.9*rand.Float64()) * float64(time.Millisecond))
		time.Sleep(d)
		timings[stage.name] = d.Milliseconds()
	}

	logger.Debug("Turn processed",
		zap.String("path", c.Request.URL.Path),
		zap.String("degradation", c.GetHeader(middleware.DegradationHeader)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if rand.Float64() < failureRate {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pipeline stage failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"path":        c.Request.URL.Path,
		"priority":    c.GetHeader(middleware.PriorityHeader),
		"degradation": c.GetHeader(middleware.DegradationHeader),
		"stages_ms":   timings,
		"total_ms":    time.Since(start).Milliseconds(),
		"fallback":    c.GetHeader(middleware.DegradationHeader) == models.DegradationFallback.String(),
	})
}
