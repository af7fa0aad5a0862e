package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/shelfmate-ai/companion/config"
	"github.com/shelfmate-ai/companion/internal/db"
	"github.com/shelfmate-ai/companion/internal/embeddings"
	"github.com/shelfmate-ai/companion/internal/ingest"
	"github.com/shelfmate-ai/companion/internal/logging"
	"github.com/shelfmate-ai/companion/internal/notebook"
	"github.com/shelfmate-ai/companion/internal/ollama"
	"github.com/shelfmate-ai/companion/internal/persona"
	"github.com/shelfmate-ai/companion/internal/quiz"
	"github.com/shelfmate-ai/companion/internal/retrieval"
	"github.com/shelfmate-ai/companion/internal/tui"
)

func main() {
	var (
		migrateFlag = flag.Bool("migrate", false, "Print database migration instructions")
		ingestFlag  = flag.String("ingest", "", "Ingest a PDF or EPUB file and exit")
		titleFlag   = flag.String("title", "", "Book title for -ingest (defaults to the file name)")
		authorFlag  = flag.String("author", "", "Book author for -ingest")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *migrateFlag {
		printMigrationInstructions()
		return
	}

	log, err := logging.New(cfg.Logging.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	database, err := db.New(cfg.Database.ConnectionString)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	textEmb := embeddings.NewTextEmbedder(cfg.Ollama.BaseURL, cfg.Embeddings.TextModel)

	if *ingestFlag != "" {
		if err := runIngest(database, textEmb, cfg, log, *ingestFlag, *titleFlag, *authorFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error ingesting book: %v\n", err)
			os.Exit(1)
		}
		return
	}

	client := ollama.NewClient(cfg.Ollama.BaseURL)
	selector := ollama.NewModelSelector(client)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	model, err := selector.GetDefaultModel(ctx, cfg.Ollama.DefaultModel)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error selecting model: %v\n", err)
		fmt.Fprintln(os.Stderr, "Is Ollama running? Try: ollama serve")
		os.Exit(1)
	}
	log.Info("using model", "model", model)

	// thread replies stream into the UI as they generate; quiz output is
	// parsed whole, so that caller stays non-streaming
	relay := tui.NewStreamRelay()
	threadCaller := ollama.NewStreamingCaller(client, model, relay.Send)
	quizCaller := ollama.NewCaller(client, model)

	searcher := db.NewVectorSearcher(database, textEmb)
	retriever := retrieval.NewRetriever(searcher, log)
	assembler := retrieval.NewAssembler(cfg.Retrieval.MaxTokens)

	notebooks := db.NewNotebookStore(database)
	sessions := db.NewSessionStore(database)

	threads := notebook.NewEngine(notebooks, database, retriever, assembler, threadCaller, log, cfg.Retrieval.CommentTopK)
	quizzes := quiz.NewEngine(sessions, database, retriever, assembler, quizCaller, log, cfg.Retrieval.QuizTopK)

	app := tui.New(tui.Services{
		Notebooks:     notebooks,
		Sessions:      sessions,
		Books:         database,
		Threads:       threads,
		Quizzes:       quizzes,
		Persona:       defaultPersona(),
		Characters:    defaultCharacters(),
		Stream:        relay,
		AutosaveDelay: time.Duration(cfg.Autosave.DelayMillis) * time.Millisecond,
		Log:           log,
	})

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running app: %v\n", err)
		os.Exit(1)
	}
}

// runIngest processes one book file from the command line
func runIngest(database *db.DB, textEmb *embeddings.TextEmbedder, cfg *config.Config, log *logging.Logger, path, title, author string) error {
	processor := ingest.NewProcessor(database, textEmb, cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap, log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	b, err := processor.IngestBook(ctx, path, title, author)
	if err != nil {
		return err
	}
	fmt.Printf("Ingested %q (%d chapters, %d characters)\n", b.Title, len(b.Chapters), b.Length)
	fmt.Printf("Book id: %s\n", b.ID)
	return nil
}

func printMigrationInstructions() {
	migrationDir := "migrations"
	if _, err := os.Stat(migrationDir); os.IsNotExist(err) {
		if exePath, err := os.Executable(); err == nil {
			migrationDir = filepath.Join(filepath.Dir(exePath), "..", "migrations")
		}
	}
	fmt.Println("Run migrations manually:")
	fmt.Printf("  psql postgres -f %s\n", filepath.Join(migrationDir, "00001_init_schema.up.sql"))
	fmt.Println("The pgvector extension must be installed: CREATE EXTENSION IF NOT EXISTS vector;")
}

// defaultPersona is used until persona editing lands in the TUI
func defaultPersona() persona.Persona {
	return persona.Persona{
		ID:          uuid.New(),
		Name:        "Reader",
		Description: "A curious reader working through their shelf.",
	}
}

// defaultCharacters is the built-in companion roster
func defaultCharacters() []persona.Character {
	return []persona.Character{
		{
			ID:          uuid.New(),
			Name:        "Hazel",
			Avatar:      "🦉",
			Personality: "A warm literature scholar who connects what the reader noticed to the craft of the book.",
			SpeechStyle: "Thoughtful and encouraging, quotes short phrases back at the reader.",
		},
		{
			ID:          uuid.New(),
			Name:        "Piper",
			Avatar:      "🦊",
			Personality: "A playful skeptic who pokes at characters' motives and loves a good theory.",
			SpeechStyle: "Teasing, quick, fond of rhetorical questions.",
		},
		{
			ID:          uuid.New(),
			Name:        "Bram",
			Avatar:      "🐻",
			Personality: "A blunt practical type who judges every plot decision like a real-life choice.",
			SpeechStyle: "Short declarative sentences, dry humor.",
		},
	}
}
