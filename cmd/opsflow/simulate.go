package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/petrijr/opsflow"
)

type simulateOptions struct {
	url        string
	workflowID string
	eventType  string
	perMinute  float64
	count      int
	skus       int
	maxQty     int
}

func newSimulateCmd() *cobra.Command {
	var opts simulateOptions

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Post random order events to a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if opts.workflowID == "" {
				return fmt.Errorf("--workflow is required")
			}
			sim := &simulator{
				opts:   opts,
				client: &http.Client{Timeout: 10 * time.Second},
				logger: logger,
				rand:   rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
			}
			return sim.run(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.url, "url", "http://localhost:8080", "Base URL of the opsflow server")
	f.StringVar(&opts.workflowID, "workflow", "", "Workflow id the events target")
	f.StringVar(&opts.eventType, "type", "order_placed", "Event type")
	f.Float64Var(&opts.perMinute, "rate", 60, "Events per minute")
	f.IntVar(&opts.count, "count", 0, "Number of events to send (0 = until interrupted)")
	f.IntVar(&opts.skus, "skus", 5, "Number of distinct SKUs (SKU1..SKUn)")
	f.IntVar(&opts.maxQty, "max-qty", 20, "Maximum quantity per order line")
	return cmd
}

type simulator struct {
	opts   simulateOptions
	client *http.Client
	logger *slog.Logger
	rand   *rand.Rand
}

func (s *simulator) run(ctx context.Context) error {
	perSecond := rate.Limit(s.opts.perMinute / 60)
	if s.opts.perMinute <= 0 {
		perSecond = rate.Inf
	}
	limiter := rate.NewLimiter(perSecond, 1)

	for sent := 0; s.opts.count == 0 || sent < s.opts.count; sent++ {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		evt := s.nextEvent()
		if err := s.publish(ctx, evt); err != nil {
			s.logger.WarnContext(ctx, "simulate_publish_failed", slog.Any("error", err))
			continue
		}
		s.logger.InfoContext(ctx, "simulate_event_sent",
			slog.Int("n", sent+1),
			slog.String("order_id", evt.Data["order_id"].(string)),
		)
	}
	return nil
}

func (s *simulator) nextEvent() opsflow.Event {
	skus := max(s.opts.skus, 1)
	maxQty := max(s.opts.maxQty, 1)

	lines := 1 + s.rand.IntN(3)
	items := make([]any, 0, lines)
	for range lines {
		items = append(items, map[string]any{
			"sku": fmt.Sprintf("SKU%d", 1+s.rand.IntN(skus)),
			"qty": 1 + s.rand.IntN(maxQty),
		})
	}
	return opsflow.Event{
		Type:       s.opts.eventType,
		WorkflowID: s.opts.workflowID,
		Data: map[string]any{
			"order_id": fmt.Sprintf("ORD-%06d", s.rand.IntN(1_000_000)),
			"items":    items,
		},
	}
}

func (s *simulator) publish(ctx context.Context, evt opsflow.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.opts.url, "/")+"/publish_event", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("publish_event: %s", resp.Status)
	}
	return nil
}
