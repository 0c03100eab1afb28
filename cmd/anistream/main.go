package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aozaki/anistream/internal/api"
	"github.com/aozaki/anistream/internal/auth"
	"github.com/aozaki/anistream/internal/clipboard"
	"github.com/aozaki/anistream/internal/config"
	"github.com/aozaki/anistream/internal/database"
	"github.com/aozaki/anistream/internal/downloader"
	"github.com/aozaki/anistream/internal/history"
	"github.com/aozaki/anistream/internal/library"
	"github.com/aozaki/anistream/internal/scraper"
	"github.com/aozaki/anistream/internal/session"
	"github.com/aozaki/anistream/internal/tui"
	"github.com/aozaki/anistream/internal/tui/common"
	"github.com/aozaki/anistream/internal/tui/utils"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"
	// Global flags
	cfgFile   string
	logLevel  string
	noColor   bool
	debugMode bool
	apiURL    string

	// Global config and logger
	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "anistream [route]",
	Short: "A terminal client for the AniStream catalog",
	Long: `anistream is a terminal client for the AniStream catalog: browse and
search the library, stream episodes through mpv, keep watch history and
sign in with Discord for a synced watchlist.

The optional route argument deep-links straight into a view:

  anistream /browse?genre=Action
  anistream /anime/abc123
  anistream /watch/abc123/2`,
	Args:    cobra.MaximumNArgs(1),
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for config init command
		if cmd.Name() == "init" && cmd.Parent().Name() == "config" {
			return nil
		}

		// Initialize directories before config load
		if err := config.InitializeDirs(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize directories: %v\n", err)
			os.Exit(1)
		}

		// Load configuration for all other commands
		var err error
		var v *viper.Viper
		cfg, v, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Enable debug mode if flag is set
		if debugMode {
			cfg.Advanced.Debug = true
			if logLevel == "" {
				cfg.Logging.Level = "debug"
			}
		}

		// Override log level if specified
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		// Override color setting if specified
		if noColor {
			cfg.Logging.Color = false
		}

		// Override backend URL if specified
		if apiURL != "" {
			cfg.API.BaseURL = apiURL
		}

		// Initialize logger
		logger, err = config.InitLogger(&cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		// Initialize database
		if err := database.Init(&cfg.Database); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}

		// Setup hot reload
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			logger.Info("Config file changed", "name", e.Name)
			if err := v.Unmarshal(&cfg); err != nil {
				logger.Error("Failed to reload config", "error", err)
			}
		})

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		// Cleanup
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := "/"
		if len(args) > 0 {
			raw = args[0]
		}

		route, err := common.ParseRoute(raw)
		if err != nil {
			return err
		}

		return launchTUI(route)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/anistream/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug mode (verbose HTTP logging)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "backend base URL (overrides config)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(animeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(libraryCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(genresCmd)
}

// launchTUI wires the shared dependencies and runs the interface at the
// given route.
func launchTUI(initial common.Route) error {
	logger.Info("anistream starting", "version", version, "route", initial.String())

	client := api.NewClient(cfg, logger)
	sess := session.NewManager(database.GetDB())
	if err := sess.Load(); err != nil {
		logger.Warn("could not restore saved session", "error", err)
	}

	return tui.Start(client, sess, database.GetDB(), cfg, logger, initial)
}

// loadSession restores the persisted identity, if any
func loadSession() (*session.Manager, error) {
	sess := session.NewManager(database.GetDB())
	if err := sess.Load(); err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return sess, nil
}

// versionCmd displays version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("anistream version %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
	},
}

// configCmd handles configuration operations
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Determine config path
		configPath := cfgFile
		if configPath == "" {
			configPath = filepath.Join(config.GetConfigDir(), "config.yaml")
		}

		// Check if config file already exists
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s", configPath)
		}

		// Generate and save default configuration
		if err := config.SaveDefaultConfig(configPath); err != nil {
			return fmt.Errorf("failed to save default configuration: %w", err)
		}

		fmt.Printf("Default configuration generated at: %s\n", configPath)
		fmt.Println("Edit this file to point anistream at your backend.")
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := cfgFile
		if configPath == "" {
			configPath = filepath.Join(config.GetConfigDir(), "config.yaml")
		}

		fmt.Printf("Config file: %s\n", configPath)
		fmt.Printf("Backend: %s\n", cfg.API.BaseURL)
		fmt.Printf("Database: %s\n", cfg.Database.Path)
		fmt.Printf("Downloads: %s\n", cfg.Downloads.Dir)
		fmt.Printf("Log level: %s\n", cfg.Logging.Level)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Display configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			fmt.Println(cfgFile)
		} else {
			fmt.Println(config.GetConfigDir())
		}
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}

// authCmd handles the Discord login
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Discord sign-in",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with Discord",
	Long: `Sign in with Discord through the AniStream backend.

By default a local callback server catches the redirect and the browser
opens automatically. On a headless box pass --manual: visit the printed
URL anywhere, then paste the redirect URL back into the terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		manual, _ := cmd.Flags().GetBool("manual")

		sess, err := loadSession()
		if err != nil {
			return err
		}
		if current := sess.Current(); current != nil {
			fmt.Printf("Already signed in as %s. Run 'anistream auth logout' to switch accounts.\n", current.Username)
			return nil
		}

		client := api.NewClient(cfg, logger)
		flow := auth.NewFlow(client, sess, auth.Options{
			CallbackPort: cfg.Auth.CallbackPort,
			Logger:       logger,
		})

		ctx := context.Background()
		loginURL, err := flow.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to start login: %w", err)
		}

		if manual {
			fmt.Printf("Visit this URL to sign in with Discord:\n\n%s\n\n", loginURL)
			fmt.Print("Paste the redirect URL, or press Enter to read it from the clipboard: ")

			reader := bufio.NewReader(os.Stdin)
			input, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			code, state := auth.ParseRedirectInput(input)
			if code == "" {
				svc := clipboard.NewService(cfg.Advanced.Clipboard.Command, logger)
				text, clipErr := svc.Read(ctx)
				if clipErr != nil {
					return fmt.Errorf("nothing entered and clipboard read failed: %w", clipErr)
				}
				code, state = auth.ParseRedirectInput(text)
			}

			identity, err := flow.Complete(ctx, code, state)
			if err != nil {
				return err
			}

			fmt.Printf("Signed in as %s\n", identity.Username)
			return nil
		}

		fmt.Println("Opening your browser for Discord login...")
		fmt.Printf("If nothing opens, visit:\n\n%s\n\n", loginURL)

		identity, err := flow.Await(ctx, loginURL)
		if err != nil {
			return err
		}

		fmt.Printf("Signed in as %s\n", identity.Username)
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show who is signed in",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := loadSession()
		if err != nil {
			return err
		}

		current := sess.Current()
		if current == nil {
			fmt.Println("Not signed in. Run 'anistream auth login' to sign in with Discord.")
			return nil
		}

		fmt.Printf("Signed in as %s (ID: %s)\n", current.Username, current.UserID)
		if current.Email != "" {
			fmt.Printf("Email: %s\n", current.Email)
		}
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := loadSession()
		if err != nil {
			return err
		}

		current := sess.Current()
		if current == nil {
			fmt.Println("Not signed in.")
			return nil
		}

		if err := sess.Logout(); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}

		fmt.Printf("Signed out %s\n", current.Username)
		return nil
	},
}

func init() {
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLogoutCmd)
	authLoginCmd.Flags().Bool("manual", false, "print the URL and paste the redirect by hand")
}

// browseCmd opens the catalog browser with filters pre-applied
var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")
		genre, _ := cmd.Flags().GetString("genre")
		status, _ := cmd.Flags().GetString("status")
		page, _ := cmd.Flags().GetInt("page")
		if page < 1 {
			page = 1
		}

		return launchTUI(common.Route{
			View:   common.ViewBrowse,
			Search: search,
			Genre:  genre,
			Status: status,
			Page:   page,
		})
	},
}

// animeCmd opens the detail page for one catalog entry
var animeCmd = &cobra.Command{
	Use:   "anime <anime-id>",
	Short: "Open the detail page for a catalog entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return launchTUI(common.DetailRoute(args[0]))
	},
}

// watchCmd jumps straight into playback
var watchCmd = &cobra.Command{
	Use:   "watch <anime-id> <episode>",
	Short: "Play an episode",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		episode, err := strconv.Atoi(args[1])
		if err != nil || episode < 1 {
			return fmt.Errorf("invalid episode number %q", args[1])
		}

		return launchTUI(common.WatchRoute(args[0], episode))
	},
}

func init() {
	browseCmd.Flags().StringP("search", "s", "", "search query")
	browseCmd.Flags().StringP("genre", "g", "", "filter by genre")
	browseCmd.Flags().String("status", "", "filter by airing status (ongoing, completed)")
	browseCmd.Flags().IntP("page", "p", 1, "page to open")
}

// importCmd imports titles from MyAnimeList into the catalog
var importCmd = &cobra.Command{
	Use:   "import <mal-id>",
	Short: "Import an anime from MyAnimeList",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		malID, err := strconv.Atoi(args[0])
		if err != nil || malID < 1 {
			return fmt.Errorf("invalid MAL id %q", args[0])
		}

		client := api.NewClient(cfg, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		anime, err := client.JikanImport(ctx, malID)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		fmt.Printf("Imported %s\n", anime.Title)
		fmt.Printf("  ID: %s\n", anime.ID)
		if anime.Year > 0 {
			fmt.Printf("  Year: %d\n", anime.Year)
		}
		fmt.Printf("  Episodes: %d\n", len(anime.Episodes))
		fmt.Printf("\nOpen it with: anistream anime %s\n", anime.ID)
		return nil
	},
}

var importSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search MyAnimeList for titles to import",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		page, _ := cmd.Flags().GetInt("page")

		client := api.NewClient(cfg, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		res, err := client.JikanSearch(ctx, query, page)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		fmt.Printf("Found %d results:\n\n", len(res.Data))
		for i, r := range res.Data {
			fmt.Printf("%d. %s (MAL: %d)\n", i+1, r.Title, r.MALID)
			if r.Score > 0 {
				fmt.Printf("   Score: %.2f\n", r.Score)
			}
			if r.Year > 0 {
				fmt.Printf("   Year: %d\n", r.Year)
			}
			if r.Episodes > 0 {
				fmt.Printf("   Episodes: %d\n", r.Episodes)
			}
			if r.Status != "" {
				fmt.Printf("   Status: %s\n", r.Status)
			}
			fmt.Println()
		}

		if res.Pagination.HasNextPage {
			fmt.Printf("More results with: --page %d\n", page+1)
		}
		fmt.Println("Import one with: anistream import <mal-id>")
		return nil
	},
}

var importDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Browse the MyAnimeList top-anime chart",
	Long: `Fetch the public MyAnimeList top-anime chart and list the entries with
their MAL ids, ready to import. The chart is scraped from the website,
so it works even when a search does not surface what you are after.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, _ := cmd.Flags().GetString("filter")
		offset, _ := cmd.Flags().GetInt("offset")

		switch filter {
		case scraper.FilterAll, scraper.FilterAiring, scraper.FilterUpcoming, scraper.FilterTV, scraper.FilterMovie:
		default:
			return fmt.Errorf("unknown filter %q (airing, upcoming, tv, movie)", filter)
		}

		s := scraper.New(logger)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		rows, err := s.TopAnime(ctx, filter, offset)
		if err != nil {
			return fmt.Errorf("failed to fetch the chart: %w", err)
		}

		for _, row := range rows {
			fmt.Printf("%4d. %s (MAL: %d)", row.Rank, row.Title, row.MALID)
			if row.Score > 0 {
				fmt.Printf("  %.2f", row.Score)
			}
			fmt.Println()
		}

		fmt.Println("\nImport one with: anistream import <mal-id>")
		return nil
	},
}

func init() {
	importCmd.AddCommand(importSearchCmd)
	importCmd.AddCommand(importDiscoverCmd)
	importSearchCmd.Flags().IntP("page", "p", 1, "result page")
	importDiscoverCmd.Flags().StringP("filter", "f", "", "chart filter: airing, upcoming, tv, movie")
	importDiscoverCmd.Flags().Int("offset", 0, "rank of the first row (the chart pages by 50)")
}

// adminCmd manages the catalog directly on the backend
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Catalog administration",
}

var adminAnimeCmd = &cobra.Command{
	Use:   "anime",
	Short: "Create, update or delete catalog entries",
}

var adminAnimeCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a catalog entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := animePayloadFromFlags(cmd, api.AnimeCreate{})
		if err != nil {
			return err
		}
		if payload.Title == "" {
			return fmt.Errorf("--title is required")
		}

		client := api.NewClient(cfg, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		anime, err := client.CreateAnime(ctx, payload)
		if err != nil {
			return fmt.Errorf("create failed: %w", err)
		}

		fmt.Printf("Created %s (ID: %s)\n", anime.Title, anime.ID)
		return nil
	},
}

var adminAnimeUpdateCmd = &cobra.Command{
	Use:   "update <anime-id>",
	Short: "Update a catalog entry",
	Long: `Update fields of a catalog entry. Only the flags you pass change;
everything else keeps its current value.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := api.NewClient(cfg, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		existing, err := client.GetAnime(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to fetch anime: %w", err)
		}

		payload, err := animePayloadFromFlags(cmd, api.AnimeCreate{
			Title:         existing.Title,
			TitleJapanese: existing.TitleJapanese,
			Synopsis:      existing.Synopsis,
			CoverImage:    existing.CoverImage,
			BannerImage:   existing.BannerImage,
			Genres:        existing.Genres,
			Status:        string(existing.Status),
			Rating:        existing.Rating,
			Year:          existing.Year,
			Episodes:      existing.Episodes,
			TotalEpisodes: existing.TotalEpisodes,
			IsFeatured:    existing.IsFeatured,
		})
		if err != nil {
			return err
		}

		anime, err := client.UpdateAnime(ctx, args[0], payload)
		if err != nil {
			return fmt.Errorf("update failed: %w", err)
		}

		fmt.Printf("Updated %s (ID: %s)\n", anime.Title, anime.ID)
		return nil
	},
}

var adminAnimeDeleteCmd = &cobra.Command{
	Use:   "delete <anime-id>",
	Short: "Delete a catalog entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := api.NewClient(cfg, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := client.DeleteAnime(ctx, args[0]); err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}

		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

// animePayloadFromFlags overlays the changed anime flags onto a base payload
func animePayloadFromFlags(cmd *cobra.Command, payload api.AnimeCreate) (api.AnimeCreate, error) {
	flags := cmd.Flags()

	if flags.Changed("title") {
		payload.Title, _ = flags.GetString("title")
	}
	if flags.Changed("japanese-title") {
		payload.TitleJapanese, _ = flags.GetString("japanese-title")
	}
	if flags.Changed("synopsis") {
		payload.Synopsis, _ = flags.GetString("synopsis")
	}
	if flags.Changed("cover") {
		payload.CoverImage, _ = flags.GetString("cover")
	}
	if flags.Changed("banner") {
		payload.BannerImage, _ = flags.GetString("banner")
	}
	if flags.Changed("genre") {
		payload.Genres, _ = flags.GetStringSlice("genre")
	}
	if flags.Changed("status") {
		status, _ := flags.GetString("status")
		if status != string(api.StatusOngoing) && status != string(api.StatusCompleted) {
			return payload, fmt.Errorf("invalid status %q (ongoing or completed)", status)
		}
		payload.Status = status
	}
	if flags.Changed("rating") {
		payload.Rating, _ = flags.GetFloat64("rating")
	}
	if flags.Changed("year") {
		payload.Year, _ = flags.GetInt("year")
	}
	if flags.Changed("total-episodes") {
		payload.TotalEpisodes, _ = flags.GetInt("total-episodes")
	}
	if flags.Changed("featured") {
		payload.IsFeatured, _ = flags.GetBool("featured")
	}

	return payload, nil
}

// addAnimeFlags registers the shared create/update flag set
func addAnimeFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "anime title")
	cmd.Flags().String("japanese-title", "", "japanese title")
	cmd.Flags().String("synopsis", "", "synopsis")
	cmd.Flags().String("cover", "", "cover image URL")
	cmd.Flags().String("banner", "", "banner image URL")
	cmd.Flags().StringSlice("genre", nil, "genre (repeatable)")
	cmd.Flags().String("status", "", "airing status: ongoing or completed")
	cmd.Flags().Float64("rating", 0, "rating, 0-10")
	cmd.Flags().Int("year", 0, "release year")
	cmd.Flags().Int("total-episodes", 0, "planned episode count")
	cmd.Flags().Bool("featured", false, "show in the home carousel")
}

var adminEpisodeCmd = &cobra.Command{
	Use:   "episode",
	Short: "Manage episodes of a catalog entry",
}

var adminEpisodeAddCmd = &cobra.Command{
	Use:   "add <anime-id>",
	Short: "Add an episode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, _ := cmd.Flags().GetInt("number")
		title, _ := cmd.Flags().GetString("title")
		videoURL, _ := cmd.Flags().GetString("url")
		thumbnail, _ := cmd.Flags().GetString("thumbnail")
		duration, _ := cmd.Flags().GetString("duration")

		if number < 1 {
			return fmt.Errorf("--number must be positive")
		}
		if videoURL == "" {
			return fmt.Errorf("--url is required")
		}

		client := api.NewClient(cfg, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		episode, err := client.AddEpisode(ctx, args[0], api.Episode{
			Number:    number,
			Title:     title,
			VideoURL:  videoURL,
			Thumbnail: thumbnail,
			Duration:  duration,
		})
		if err != nil {
			return fmt.Errorf("add episode failed: %w", err)
		}

		fmt.Printf("Added episode %d", episode.Number)
		if episode.Title != "" {
			fmt.Printf(" (%s)", episode.Title)
		}
		fmt.Println()
		return nil
	},
}

var adminEpisodeRemoveCmd = &cobra.Command{
	Use:   "remove <anime-id> <episode>",
	Short: "Remove an episode",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[1])
		if err != nil || number < 1 {
			return fmt.Errorf("invalid episode number %q", args[1])
		}

		client := api.NewClient(cfg, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := client.DeleteEpisode(ctx, args[0], number); err != nil {
			return fmt.Errorf("remove episode failed: %w", err)
		}

		fmt.Printf("Removed episode %d\n", number)
		return nil
	},
}

var adminSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the backend with demo data",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := api.NewClient(cfg, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		msg, err := client.Seed(ctx)
		if err != nil {
			return fmt.Errorf("seed failed: %w", err)
		}

		fmt.Println(msg.Message)
		return nil
	},
}

func init() {
	adminCmd.AddCommand(adminAnimeCmd)
	adminCmd.AddCommand(adminEpisodeCmd)
	adminCmd.AddCommand(adminSeedCmd)

	adminAnimeCmd.AddCommand(adminAnimeCreateCmd)
	adminAnimeCmd.AddCommand(adminAnimeUpdateCmd)
	adminAnimeCmd.AddCommand(adminAnimeDeleteCmd)
	addAnimeFlags(adminAnimeCreateCmd)
	addAnimeFlags(adminAnimeUpdateCmd)

	adminEpisodeCmd.AddCommand(adminEpisodeAddCmd)
	adminEpisodeCmd.AddCommand(adminEpisodeRemoveCmd)
	adminEpisodeAddCmd.Flags().IntP("number", "n", 0, "episode number")
	adminEpisodeAddCmd.Flags().String("title", "", "episode title")
	adminEpisodeAddCmd.Flags().String("url", "", "video URL (mp4 or HLS playlist)")
	adminEpisodeAddCmd.Flags().String("thumbnail", "", "thumbnail URL")
	adminEpisodeAddCmd.Flags().String("duration", "", "display duration, e.g. 24:00")
}

// downloadCmd downloads episodes for offline viewing
var downloadCmd = &cobra.Command{
	Use:   "download <anime-id> [episode]",
	Short: "Download episodes for offline viewing",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if !all && len(args) < 2 {
			return fmt.Errorf("specify an episode number or pass --all")
		}

		client := api.NewClient(cfg, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		anime, err := client.GetAnime(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to fetch anime: %w", err)
		}
		if len(anime.Episodes) == 0 {
			return fmt.Errorf("%s has no episodes", anime.Title)
		}

		targets := anime.Episodes
		if !all {
			number, err := strconv.Atoi(args[1])
			if err != nil || number < 1 {
				return fmt.Errorf("invalid episode number %q", args[1])
			}

			targets = nil
			for _, ep := range anime.Episodes {
				if ep.Number == number {
					targets = []api.Episode{ep}
					break
				}
			}
			if targets == nil {
				return fmt.Errorf("%s has no episode %d", anime.Title, number)
			}
		}

		mgr, err := downloader.NewManager(database.GetDB(), &cfg.Downloads, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize download manager: %w", err)
		}
		if err := mgr.Start(); err != nil {
			return fmt.Errorf("failed to start download manager: %w", err)
		}
		defer mgr.Stop()

		queued := make(map[string]bool)
		for i := range targets {
			task, err := mgr.Enqueue(anime, &targets[i])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Skipping episode %d: %v\n", targets[i].Number, err)
				continue
			}
			queued[task.ID] = true
		}
		if len(queued) == 0 {
			return fmt.Errorf("nothing to download")
		}

		// Monitor progress until every queued task reaches a terminal state
		fmt.Printf("Downloading %d episode(s) of %s to %s\n", len(queued), anime.Title, cfg.Downloads.Dir)
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			<-ticker.C

			queue, err := mgr.Queue()
			if err != nil {
				return fmt.Errorf("failed to read download queue: %w", err)
			}

			var remaining, failed int
			var progress float64
			var speed int64
			for _, task := range queue {
				if !queued[task.ID] {
					continue
				}
				switch {
				case task.Status == downloader.StatusFailed:
					failed++
				case !task.Status.IsComplete():
					remaining++
					speed += task.Speed
				}
				progress += task.Progress
			}

			if remaining == 0 {
				fmt.Println()
				if failed > 0 {
					return fmt.Errorf("%d download(s) failed, see the log for details", failed)
				}
				fmt.Println("All downloads completed")
				return nil
			}

			fmt.Printf("\rProgress: %5.1f%%  (%d left, %s/s)   ",
				progress/float64(len(queued)), remaining, humanize.Bytes(uint64(speed)))
		}
	},
}

func init() {
	downloadCmd.Flags().Bool("all", false, "download every episode")
}

// libraryCmd works with the signed-in user's library
var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Library tools",
}

var libraryExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export watchlist, favorites and history",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("out")

		sess, err := loadSession()
		if err != nil {
			return err
		}
		current := sess.Current()
		if current == nil {
			return fmt.Errorf("not signed in, run 'anistream auth login' first")
		}

		client := api.NewClient(cfg, logger)
		exporter := library.NewExporter(client, logger)

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		snap, err := exporter.Snapshot(ctx, current.UserID, current.Username)
		if err != nil {
			return err
		}

		out := os.Stdout
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", outPath, err)
			}
			defer f.Close()
			out = f
		}

		if err := exporter.Write(out, snap, format); err != nil {
			return err
		}

		if outPath != "" {
			fmt.Printf("Exported %d watchlist, %d favorites and %d history entries to %s\n",
				len(snap.Watchlist), len(snap.Favorites), len(snap.History), outPath)
		}
		return nil
	},
}

func init() {
	libraryCmd.AddCommand(libraryExportCmd)
	libraryExportCmd.Flags().StringP("format", "f", library.FormatYAML, "export format: yaml or json")
	libraryExportCmd.Flags().StringP("out", "o", "", "output file (default: stdout)")
}

// historyCmd prints recently watched episodes from the local mirror
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently watched episodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		svc := history.NewService(database.GetDB())
		entries, err := svc.Recent(limit)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No watch history yet.")
			return nil
		}

		for _, entry := range entries {
			marker := " "
			if entry.Completed {
				marker = "*"
			}
			fmt.Printf("%s %-40s  E%02d  %5.1f%%  %s\n",
				marker,
				utils.Truncate(entry.AnimeTitle, 40),
				entry.EpisodeNumber,
				entry.ProgressPercent,
				humanize.Time(entry.WatchedAt))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "number of entries to show")
}

// genresCmd lists the catalog's genres
var genresCmd = &cobra.Command{
	Use:   "genres",
	Short: "List the catalog's genres",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := api.NewClient(cfg, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		genres, err := client.Genres(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch genres: %w", err)
		}

		for _, genre := range genres {
			fmt.Println(genre)
		}
		return nil
	},
}
