// cli_session corre una sesión de diagnóstico completa por terminal, usando
// el mismo orquestador que el API. Sin backend configurado funciona igual,
// degradando al contenido de fallback.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"nightloom/internal/config"
	"nightloom/internal/llm"
	"nightloom/internal/repository"
	"nightloom/internal/service"
)

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	gateway := llm.NewClient(cfg.GenBaseURL, cfg.GenAPIKey, llm.Config{
		Timeout:    time.Duration(cfg.GenTimeoutSecs) * time.Second,
		MaxRetries: cfg.GenMaxRetries,
		RetryDelay: time.Duration(cfg.GenRetryDelayMS) * time.Millisecond,
	}, logger)

	facade := service.NewGenerationFacade(gateway, service.NewFallbackProvider(), logger)
	scoring := service.NewScoringEngine(cfg.ScoringStrict, logger)
	orchestrator := service.NewSessionOrchestrator(repository.NewMemorySessionStore(), facade, scoring, logger)

	fmt.Print("Carácter inicial: ")
	seed := readLine(reader)

	session, err := orchestrator.CreateSession(ctx, seed)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("\nTema: %s\n", session.ThemeID)
	fmt.Println("Keywords candidatas:")
	for i, kw := range session.KeywordCandidates {
		fmt.Printf("  %d) %s\n", i+1, kw)
	}
	fmt.Print("Elegí una keyword (número o texto): ")
	keyword := readLine(reader)
	if n, err := strconv.Atoi(keyword); err == nil && n >= 1 && n <= len(session.KeywordCandidates) {
		keyword = session.KeywordCandidates[n-1]
	}

	session, err = orchestrator.ConfirmKeyword(ctx, session.ID, keyword)
	if err != nil {
		log.Fatal(err)
	}

	for _, scene := range session.Scenes {
		fmt.Printf("\n--- Escena %d ---\n%s\n", scene.SceneIndex, scene.Narrative)
		for i, ch := range scene.Choices {
			fmt.Printf("  %d) %s\n", i+1, ch.Text)
		}

		var choiceID string
		for {
			fmt.Print("Opción: ")
			n, err := strconv.Atoi(readLine(reader))
			if err == nil && n >= 1 && n <= len(scene.Choices) {
				choiceID = scene.Choices[n-1].ID
				break
			}
			fmt.Println("Opción inválida.")
		}

		if _, err := orchestrator.RecordChoice(ctx, session.ID, scene.SceneIndex, choiceID); err != nil {
			log.Fatal(err)
		}
	}

	result, err := orchestrator.GenerateResult(ctx, session.ID)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("\n=== Resultado ===")
	for id, score := range result.Scores.Normalized {
		fmt.Printf("  %-12s %6.1f  (%s)\n", id, score, service.Interpret(score))
	}
	fmt.Printf("  balance: %.2f\n", service.BalanceScore(result.Scores.Normalized))
	if extremes := service.ExtremeAxes(result.Scores.Normalized); len(extremes) > 0 {
		fmt.Printf("  ejes extremos: %s\n", strings.Join(extremes, ", "))
	}
	fmt.Println("\nPerfiles:")
	for _, p := range result.Type.Profiles {
		fmt.Printf("  - %s: %s\n", p.Name, p.Description)
	}
	if result.Type.FallbackUsed {
		fmt.Println("\n(perfiles generados con contenido de fallback)")
	}
}

func readLine(reader *bufio.Reader) string {
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
