// Command autoassign opens the OCR blocks of one or more contacts, fills
// unset fields with the rule-based detector and saves the result.
//
// Usage: autoassign [options] <contact-id>...
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/newwdead/bizcard-annotator/internal/clients"
	"github.com/newwdead/bizcard-annotator/internal/config"
	"github.com/newwdead/bizcard-annotator/internal/detect"
	"github.com/newwdead/bizcard-annotator/internal/logging"
	"github.com/newwdead/bizcard-annotator/internal/mapper"
	"github.com/newwdead/bizcard-annotator/internal/queue"
	"github.com/newwdead/bizcard-annotator/internal/recognizer"
	"github.com/newwdead/bizcard-annotator/internal/session"
	"github.com/newwdead/bizcard-annotator/internal/table"
)

var (
	flagDryRun    = flag.Bool("dry-run", false, "Detect and print, but do not save")
	flagVerbose   = flag.Bool("v", false, "Print the rule that matched each block")
	flagReread    = flag.Float64("reread-below", 0, "Re-recognize blocks with confidence below this value before saving")
	flagReprocess = flag.Bool("reprocess", false, "Ask the backend for a fresh recognition first")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <contact-id>...\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	cfg, err := config.LoadEditorConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewLogger("autoassign")
	backend := clients.NewBackendClient(&clients.BackendConfig{
		BaseURL: cfg.BackendURL,
		Token:   cfg.APIToken,
		Timeout: time.Duration(cfg.RequestTimeoutMs) * time.Millisecond,
	})

	healthCtx, healthCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := backend.HealthCheck(healthCtx); err != nil {
		log.Printf("Warning: backend health check failed: %v", err)
	}
	healthCancel()

	var rec mapper.Recognizer = backend
	if cfg.LocalOCR {
		rec, err = recognizer.NewTesseract(&recognizer.Config{
			Images:    clients.NewImageFetcher(cfg.APIToken),
			Languages: cfg.TesseractLanguages,
			Logger:    logger,
		})
		if err != nil {
			log.Fatalf("Failed to initialize local recognizer: %v", err)
		}
	}

	var sink mapper.FeedbackSink
	switch cfg.FeedbackTransport {
	case config.FeedbackQueue:
		pub, err := queue.NewPublisher(cfg.RedisURL, cfg.FeedbackQueue)
		if err != nil {
			log.Fatalf("Failed to initialize feedback publisher: %v", err)
		}
		defer pub.Close()
		sink = pub
	default:
		sink = clients.NewFeedbackClient(cfg.BackendURL, cfg.APIToken)
	}

	m, err := mapper.New(&mapper.Config{
		Backend:    backend,
		Recognizer: rec,
		Feedback:   sink,
		Language:   cfg.Language,
		Logger:     logger,
	})
	if err != nil {
		log.Fatalf("Failed to initialize mapper: %v", err)
	}

	detector := detect.Default()
	failed := 0
	for _, contactID := range flag.Args() {
		s, err := session.New(&session.Config{
			ContactID:       contactID,
			Loader:          backend,
			Mapper:          m,
			Detector:        detector,
			Table:           table.NewEditor(backend, detector, logger),
			ContainerWidth:  cfg.ContainerWidth,
			ContainerHeight: cfg.ContainerHeight,
			Padding:         cfg.Padding,
			Logger:          logger,
		})
		if err != nil {
			log.Fatalf("Failed to create session: %v", err)
		}
		if err := run(s, detector, cfg.RequestTimeoutMs); err != nil {
			log.Printf("[Contact %s] %v", contactID, err)
			failed++
		}
	}

	// Feedback is sent in the background after each save.
	m.Wait()

	if failed > 0 {
		os.Exit(1)
	}
}

func run(s *session.Session, detector *detect.Detector, timeoutMs int) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutMs)*time.Millisecond*4)
	defer cancel()

	if err := s.Open(ctx); err != nil {
		return err
	}
	for _, n := range s.Notices() {
		log.Printf("Notice: %v", n)
	}

	if *flagReprocess {
		if err := s.Reprocess(ctx); err != nil {
			return err
		}
	}

	if *flagReread > 0 {
		for _, b := range s.Document().Blocks() {
			if b.Confidence >= *flagReread {
				continue
			}
			if err := s.Rerecognize(ctx, b.ID); err != nil {
				log.Printf("Re-recognition of block %s failed: %v", b.ID, err)
				continue
			}
			s.Redetect(b.ID)
		}
	}

	for _, row := range s.Rows() {
		label := row.FieldLabel
		if label == "" {
			label = "-"
		}
		line := fmt.Sprintf("  %-24s %.2f  %q", label, row.Confidence, row.Text)
		if *flagVerbose && row.AutoDetected {
			if _, rule := detector.Explain(row.Text); rule != "" {
				line += "  (" + rule + ")"
			}
		}
		fmt.Println(line)
	}

	if *flagDryRun {
		return nil
	}

	updated, err := s.Save(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Saved %s: updated %v\n", s.Document().ContactID(), updated)
	return nil
}
