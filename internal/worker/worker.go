package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"ThreatScanner/internal/analysis"
	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/ports"
	"ThreatScanner/pkg/logger"
)

// AnalyzeRequest is the message payload for on-demand analysis jobs.
type AnalyzeRequest struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

// Worker consumes analyze jobs from a JetStream subject, runs the strategy
// controller, and persists the outcome. Request handlers publish here when
// an article needs analysis outside the daily batch.
type Worker struct {
	js         nats.JetStreamContext
	subject    string
	durable    string
	controller *analysis.Controller
	repository ports.AnalysisRepository
	log        *log.Logger
}

// NewWorker builds a JetStream consumer for the given subject.
func NewWorker(nc *nats.Conn, subject, durable string, controller *analysis.Controller, repository ports.AnalysisRepository) (*Worker, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	return &Worker{
		js:         js,
		subject:    subject,
		durable:    durable,
		controller: controller,
		repository: repository,
		log:        logger.New("worker"),
	}, nil
}

// Start subscribes and blocks until the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	sub, err := w.js.Subscribe(w.subject, w.handle,
		nats.Durable(w.durable),
		nats.ManualAck(),
		nats.MaxAckPending(8),
	)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", w.subject, err)
	}

	w.log.Printf("worker subscribed to %s", w.subject)
	<-ctx.Done()
	return sub.Drain()
}

func (w *Worker) handle(msg *nats.Msg) {
	var req AnalyzeRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		w.log.Printf("bad analyze request: %v", err)
		_ = msg.Term()
		return
	}

	article := domain.Article{
		ID:          req.ID,
		Title:       req.Title,
		Body:        req.Body,
		URL:         req.URL,
		Source:      req.Source,
		PublishedAt: req.PublishedAt,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result := w.controller.Analyze(ctx, article)
	healthy := result != nil
	if !healthy {
		result = domain.FallbackResult()
	}

	if w.repository != nil {
		if err := w.repository.SaveAnalysis(ctx, article, result, 0); err != nil {
			w.log.Printf("persist analysis for %s: %v", article.ID, err)
			_ = msg.Nak()
			return
		}
		if healthy && result.IOCs.Count() > 0 {
			if _, err := w.repository.SaveIndicators(ctx, article.ID, result.IOCs); err != nil {
				w.log.Printf("persist indicators for %s: %v", article.ID, err)
			}
		}
	}

	_ = msg.Ack()
}
