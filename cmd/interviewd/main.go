// Command interviewd runs the interview orchestration service: a
// WebSocket front end (spec §6) driving one Orchestrator Session per
// connection, an asynchronous Answer Scorer worker, and the supporting
// collaborators (Clip Muxer, Proctor, Transcription Client).
//
// Signal-handling and graceful-shutdown structure is grounded on
// alxayo-rtmp-go/cmd/rtmp-server/main.go: signal.NotifyContext, a
// bounded shutdown deadline, and a goroutine + select race against that
// deadline rather than blocking shutdown indefinitely.
package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/interviewrt/runtime/config"
	"github.com/interviewrt/runtime/domain"
	"github.com/interviewrt/runtime/evaluator"
	"github.com/interviewrt/runtime/events"
	"github.com/interviewrt/runtime/fixtures"
	"github.com/interviewrt/runtime/logger"
	prometheusmetrics "github.com/interviewrt/runtime/metrics/prometheus"
	"github.com/interviewrt/runtime/muxer"
	"github.com/interviewrt/runtime/orchestrator"
	"github.com/interviewrt/runtime/planner"
	"github.com/interviewrt/runtime/proctor"
	"github.com/interviewrt/runtime/providers"
	"github.com/interviewrt/runtime/scorer"
	"github.com/interviewrt/runtime/sessionstore"
	"github.com/interviewrt/runtime/telemetry"
	"github.com/interviewrt/runtime/transcription"
	"github.com/interviewrt/runtime/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("interviewd: failed to load configuration", "error", err)
		os.Exit(1)
	}

	interviews := domain.NewMemoryInterviewRepository()
	answers := domain.NewMemoryAnswerRepository()
	codingAnswers := domain.NewMemoryCodingAnswerRepository()

	var problems []*domain.CodingProblem
	if cfg.CodingProblemsPath != "" {
		loaded, err := fixtures.LoadCodingProblems(cfg.CodingProblemsPath)
		if err != nil {
			logger.Error("interviewd: failed to load coding problem bank", "error", err)
			os.Exit(1)
		}
		problems = loaded
	}
	codingBank := domain.NewMemoryCodingProblemRepository(problems)

	var llm providers.Provider // left nil: wiring a concrete provider is a deployment-time credential concern, not this binary's

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewEventBus()
	bus.SubscribeAll(prometheusmetrics.NewMetricsListener().Listener())

	telemetry.SetupPropagation()
	var tracerProvider *sdktrace.TracerProvider
	tracer := telemetry.Tracer(nil)
	if cfg.OTLPEndpoint != "" {
		tp, err := telemetry.NewTracerProvider(ctx, cfg.OTLPEndpoint, "interviewd")
		if err != nil {
			logger.Error("interviewd: failed to start OTel tracer provider", "error", err)
		} else {
			otel.SetTracerProvider(tp)
			tracer = telemetry.Tracer(tp)
			tracerProvider = tp
		}
	}
	bus.SubscribeAll(telemetry.NewOTelEventListener(tracer).OnEvent)

	metricsExporter := prometheusmetrics.NewExporter(cfg.MetricsAddr)
	go func() {
		logger.Info("interviewd: serving metrics", "addr", cfg.MetricsAddr)
		if err := metricsExporter.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("interviewd: metrics exporter exited", "error", err)
		}
	}()

	sessions := sessionstore.New()
	muxr := muxer.New(muxer.Config{Root: cfg.MediaRoot, FFmpegPath: cfg.FFmpegPath, Timeout: cfg.FFmpegTimeout})
	proc := proctor.New(func() (proctor.Detector, error) {
		return nil, errUnconfiguredDetector
	})

	questionPlanner := planner.NewQuestionPlanner(llm, 0)
	codingPlanner := planner.NewCodingPlanner(codingBank, rand.New(rand.NewSource(1)))

	scoringQueue := scorer.NewInProcessQueue(256)
	answerScorer := scorer.New(answers, llm, nil, sessionNotifier{sessions})
	answerScorer.EventBus = bus
	scoringWorker := scorer.NewWorker(scoringQueue, answerScorer)

	eval := evaluator.New(interviews, answers, llm, priorInterviewLookup(interviews))
	eval.EventBus = bus
	evalHandler := newEvaluationHandler(eval)

	if err := scoringWorker.Start(ctx); err != nil {
		logger.Error("interviewd: failed to start scoring worker", "error", err)
		os.Exit(1)
	}

	newSession := func(sessionID string, sender orchestrator.ClientSender, room orchestrator.RoomBroadcaster) *orchestrator.Session {
		deps := orchestrator.Deps{
			Interviews:      interviews,
			Answers:         answers,
			CodingAnswers:   codingAnswers,
			QuestionPlanner: questionPlanner,
			CodingPlanner:   codingPlanner,
			Muxer:           muxr,
			Proctor:         proc,
			ASRFactory: func() *transcription.Client {
				return transcription.New(transcription.Config{URL: cfg.ASRURL, AppID: cfg.ASRAppID, APIKey: cfg.ASRAPIKey})
			},
			ScoringPub: scoringQueue,
			Config:     cfg.Orchestrator,
			EventBus:   bus,
		}
		sess := orchestrator.NewSession(sessionID, deps, sender, room)
		sessions.Register(sess)
		return sess
	}

	server := transport.NewServer(newSession,
		transport.WithAddr(cfg.ListenAddr),
		transport.WithRoute("GET /interviews/{id}/report", evalHandler),
		transport.WithEventBus(bus),
	)

	go func() {
		logger.Info("interviewd: listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil {
			logger.Error("interviewd: server exited", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("interviewd: shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("interviewd: shutdown error", "error", err)
		}
		if err := metricsExporter.Shutdown(shutdownCtx); err != nil {
			logger.Error("interviewd: metrics exporter shutdown error", "error", err)
		}
		if tracerProvider != nil {
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.Error("interviewd: tracer provider shutdown error", "error", err)
			}
		}
		close(done)
	}()

	select {
	case <-done:
		logger.Info("interviewd: stopped cleanly")
	case <-shutdownCtx.Done():
		logger.Error("interviewd: forced exit after shutdown timeout")
	}
}

type sessionNotifier struct {
	store *sessionstore.Store
}

func (n sessionNotifier) NotifyScoringComplete(sessionID, answerID string) {
	n.store.NotifyBestEffort(sessionID, struct {
		AnswerID string
	}{AnswerID: answerID})
}

// priorInterviewLookup adapts domain.InterviewRepository.ListByUser into
// the evaluator.PriorInterviewLookup seam: the most recent completed
// interview for the same position type, before the one being evaluated.
func priorInterviewLookup(interviews domain.InterviewRepository) evaluator.PriorInterviewLookup {
	return func(ctx context.Context, userID string, positionType domain.PositionType, beforeInterviewID string) (*domain.Interview, error) {
		all, err := interviews.ListByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, iv := range all {
			if iv.ID == beforeInterviewID || iv.PositionType != positionType || !iv.Completed {
				continue
			}
			return iv, nil
		}
		return nil, nil
	}
}

func newEvaluationHandler(eval *evaluator.Evaluator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		interviewID := r.PathValue("id")
		report, err := eval.Evaluate(r.Context(), interviewID)
		if err != nil {
			logger.Warn("interviewd: evaluation failed", "interview_id", interviewID, "error", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(report); err != nil {
			logger.Warn("interviewd: failed to encode evaluation report", "interview_id", interviewID, "error", err)
		}
	}
}

var errUnconfiguredDetector = detectorNotConfiguredError{}

type detectorNotConfiguredError struct{}

func (detectorNotConfiguredError) Error() string {
	return "interviewd: no object-detection model wired; proctor disabled for this process"
}
