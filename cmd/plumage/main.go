package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"plumage/internal/cmdlog"
	"plumage/internal/config"
	"plumage/internal/engine"
	"plumage/internal/metrics"
	"plumage/internal/theme"
)

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "init":
		cmdInit()
	case "parse":
		cmdParse()
	case "tweets":
		cmdTweets()
	case "dms":
		cmdDMs()
	case "groups":
		cmdGroups()
	case "following":
		cmdFollowing()
	case "followers":
		cmdFollowers()
	default:
		printHelp()
	}
}

func printHelp() {
	theme.PrintBanner()
	fmt.Println("Usage: plumage <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init        Create a config file at ./plumage.yaml")
	fmt.Println("  parse       Ingest the archive and print a summary")
	fmt.Println("  tweets      Print normalized tweets")
	fmt.Println("  dms         Print one-to-one direct messages")
	fmt.Println("  groups      Print group conversations")
	fmt.Println("  following   Print the following list")
	fmt.Println("  followers   Print the follower list")
}

func cmdInit() {
	out := flag.NewFlagSet("init", flag.ExitOnError)
	path := out.String("path", "./plumage.yaml", "path to write config")
	_ = out.Parse(os.Args[2:])
	cfg := config.Default()
	if err := config.Save(*path, cfg); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	abs, _ := filepath.Abs(*path)
	theme.PrintBanner()
	fmt.Println("Config written to:", abs)
}

// loadEngine parses the shared flags and constructs the engine.
func loadEngine(name string) *engine.Engine {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cfgPath := fs.String("config", "./plumage.yaml", "config path")
	archivePath := fs.String("archive", "", "archive zip path (overrides config)")
	outDir := fs.String("out", "", "output directory (overrides config)")
	_ = fs.Parse(os.Args[2:])
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Println("error:", err)
			os.Exit(1)
		}
		cfg = config.Default()
		cfg.ResolveEnv()
	}
	if *archivePath != "" {
		cfg.Archive.Path = *archivePath
	}
	if *outDir != "" {
		cfg.Archive.OutputDir = *outDir
	}
	if cfg.Archive.Path == "" {
		fmt.Println("error: no archive path; pass -archive or set archive.path in config")
		os.Exit(1)
	}
	if cfg.Credentials.BearerToken == "" {
		fmt.Println("note: no bearer token; handles outside the export stay unresolved")
	}
	metrics.StartServer(cfg.Metrics.Addr)
	return engine.New(cfg)
}

func cmdParse() {
	e := loadEngine("parse")
	defer e.Close()
	_ = cmdlog.Run("parse", func() error {
		info, err := e.RetrieveInformation(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Owner:      @%s\n", info.Owner)
		fmt.Printf("Tweets:     %d\n", len(info.Tweets))
		fmt.Printf("Following:  %d\n", info.FollowingCount)
		fmt.Printf("Followers:  %d\n", info.FollowerCount)
		fmt.Printf("DMs:        %d\n", len(info.DirectMessages))
		fmt.Printf("Groups:     %d\n", len(info.Groups))
		fmt.Printf("Media:      %d files\n", len(info.MediaPaths))
		if len(info.Warnings) > 0 {
			fmt.Printf("Warnings:   %d\n", len(info.Warnings))
			for _, w := range info.Warnings {
				fmt.Println("  -", w)
			}
		}
		return nil
	})
}

func cmdTweets() {
	e := loadEngine("tweets")
	defer e.Close()
	_ = cmdlog.Run("tweets", func() error {
		list, err := e.Tweets(context.Background())
		if err != nil {
			return err
		}
		for _, t := range list {
			fmt.Printf("[%s] %s %s\n%s\n---\n", t.Kind, t.CreatedAt.Format(time.RFC3339), t.URL, t.Body)
		}
		return nil
	})
}

func cmdDMs() {
	e := loadEngine("dms")
	defer e.Close()
	_ = cmdlog.Run("dms", func() error {
		list, err := e.DirectMessages(context.Background())
		if err != nil {
			return err
		}
		for _, m := range list {
			fmt.Printf("%s %s -> %s: %s\n", m.CreatedAt.Format(time.RFC3339), m.Sender, m.Recipient, m.Body)
		}
		return nil
	})
}

func cmdGroups() {
	e := loadEngine("groups")
	defer e.Close()
	_ = cmdlog.Run("groups", func() error {
		list, err := e.GroupDirectMessages(context.Background())
		if err != nil {
			return err
		}
		for _, g := range list {
			fmt.Printf("== %s (%d participants)\n", g.Name, len(g.Participants))
			for _, m := range g.Messages {
				fmt.Printf("%s %s: %s\n", m.CreatedAt.Format(time.RFC3339), m.Sender, m.Body)
			}
		}
		return nil
	})
}

func cmdFollowing() {
	e := loadEngine("following")
	defer e.Close()
	_ = cmdlog.Run("following", func() error {
		list, err := e.Following(context.Background())
		if err != nil {
			return err
		}
		for _, u := range list {
			fmt.Printf("%s %s\n", u.Handle, u.ProfileURL)
		}
		return nil
	})
}

func cmdFollowers() {
	e := loadEngine("followers")
	defer e.Close()
	_ = cmdlog.Run("followers", func() error {
		list, err := e.Followers(context.Background())
		if err != nil {
			return err
		}
		for _, u := range list {
			fmt.Printf("%s %s\n", u.Handle, u.ProfileURL)
		}
		return nil
	})
}
