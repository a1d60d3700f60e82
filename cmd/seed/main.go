// seed inserts sample knowledge-base articles for local runs. Idempotent: articles are upserted by title.
// Pass -file to load a JSON array of {"title","content","category"} objects instead of the samples.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"omnichannel-support/internal/config"
	"omnichannel-support/internal/db"
	"omnichannel-support/internal/knowledge"
)

var sampleArticles = []knowledge.Article{
	{
		Title:    "Resetting your password",
		Category: "account",
		Content:  "Open Settings > Security and choose Reset password. A secure reset link is emailed to the account owner and expires after 30 minutes.",
	},
	{
		Title:    "Adding a team member",
		Category: "account",
		Content:  "Workspace admins can invite a team member from Settings > Team > Invite. The invitee receives an email and joins with the member role.",
	},
	{
		Title:    "Plans and pricing",
		Category: "billing",
		Content:  "Pricing depends on the number of seats. Billing questions, invoices and plan changes are handled by the billing team.",
	},
	{
		Title:    "Exporting a report",
		Category: "technical",
		Content:  "Reports can be exported as CSV or PDF from the Reports page using the Export button in the top right corner.",
	},
	{
		Title:    "Connecting integrations",
		Category: "technical",
		Content:  "Integrations are enabled from Settings > Integrations. Each integration needs an admin to authorize access once.",
	},
}

type articleFile struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

func main() {
	file := flag.String("file", "", "JSON file with articles; empty seeds the built-in samples")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	articles := sampleArticles
	if *file != "" {
		articles, err = loadArticles(*file)
		if err != nil {
			log.Fatalf("seed: %v", err)
		}
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store := knowledge.NewPostgresStore(conn, knowledge.DefaultLimit)
	for _, a := range articles {
		a.ID = uuid.New().String()
		if err := store.Upsert(ctx, a); err != nil {
			log.Fatalf("seed: upsert %q: %v", a.Title, err)
		}
	}
	log.Printf("seed: %d knowledge-base articles upserted", len(articles))
}

func loadArticles(path string) ([]knowledge.Article, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var in []articleFile
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	out := make([]knowledge.Article, 0, len(in))
	for i, a := range in {
		if a.Title == "" || a.Content == "" {
			return nil, fmt.Errorf("article %d: title and content are required", i)
		}
		out = append(out, knowledge.Article{Title: a.Title, Content: a.Content, Category: a.Category})
	}
	return out, nil
}
