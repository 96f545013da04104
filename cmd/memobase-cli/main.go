// Command memobase-cli is an operator tool for previewing a user's
// composed memory context and triggering an out-of-band flush, without
// going through the (unbuilt) HTTP surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/kataras/golog"

	"github.com/memobase-dev/memobase-go"
	"github.com/memobase-dev/memobase-go/blob"
	"github.com/memobase-dev/memobase-go/composer"
	"github.com/memobase-dev/memobase-go/config"
	"github.com/memobase-dev/memobase-go/llmgateway"
	"github.com/memobase-dev/memobase-go/log"
	"github.com/memobase-dev/memobase-go/store/postgres"
	"github.com/memobase-dev/memobase-go/store/redis"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(1, 2)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func main() {
	var (
		projectID = flag.String("project", "", "project id")
		userID    = flag.String("user", "", "user id")
		cmd       = flag.String("cmd", "context", "context | flush | profile")
		maxTokens = flag.Int("max-tokens", 2000, "context token budget")
		flushType = flag.String("type", string(blob.TypeChat), "blob type to flush")
	)
	flag.Parse()

	if *projectID == "" || *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: memobase-cli -project ID -user ID [-cmd context|flush|profile]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fail(err)
	}

	ctx := context.Background()
	svc, closeFn, err := buildService(ctx, cfg)
	if err != nil {
		fail(err)
	}
	defer closeFn()

	switch *cmd {
	case "context":
		pack, err := svc.GetContext(ctx, *projectID, *userID, composer.Options{MaxTokens: *maxTokens})
		if err != nil {
			fail(err)
		}
		printBox("Composed context", pack)
	case "flush":
		result, err := svc.Flush(ctx, *projectID, *userID, blob.Type(*flushType), true)
		if err != nil {
			fail(err)
		}
		if result == nil {
			printBox("Flush", "nothing to flush")
			return
		}
		printBox("Flush", fmt.Sprintf("event %s\nadded %d, updated %d, deleted %d",
			result.EventID, len(result.AddedIDs), len(result.UpdatedIDs), len(result.DeletedIDs)))
	case "profile":
		slots, err := svc.Profile(ctx, *projectID, *userID)
		if err != nil {
			fail(err)
		}
		var body string
		for _, s := range slots {
			body += fmt.Sprintf("%s::%s: %s\n", s.Attrs.Topic, s.Attrs.SubTopic, s.Content)
		}
		if body == "" {
			body = "(empty profile)"
		}
		printBox(fmt.Sprintf("Profile (%d slots)", len(slots)), body)
	default:
		fmt.Fprintf(os.Stderr, "unknown -cmd %q\n", *cmd)
		os.Exit(2)
	}
}

func buildService(ctx context.Context, cfg *config.Config) (*memobase.Service, func(), error) {
	store, err := postgres.New(ctx, postgres.Options{ConnString: cfg.PostgresConnString})
	if err != nil {
		return nil, nil, err
	}
	if err := store.InitSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}

	coord := redis.New(redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})

	gw, err := llmgateway.New(llmgateway.Config{
		APIKey:         cfg.LLMAPIKey,
		Model:          cfg.LLMModel,
		EmbeddingModel: cfg.EmbeddingModel,
		Logger:         log.NewGologLogger(golog.Default),
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	svc := memobase.New(memobase.Config{
		Blobs:        store.Blobs(),
		Profiles:     store.Profiles(),
		Events:       store.Events(),
		Buffers:      store.Buffers(),
		UserStatuses: store.UserStatuses(),
		Projects:     store.Projects(),
		Coord:        coord,
		Cache:        coord.Cache(5 * time.Minute),
		Gateway:      gw,
	})

	return svc, func() { store.Close(); coord.Close() }, nil
}

func printBox(title, body string) {
	fmt.Println(titleStyle.Render(title))
	fmt.Println(boxStyle.Render(body))
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, labelStyle.Render("error:"), err)
	os.Exit(1)
}
