package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"roundup/internal/config"
	"roundup/internal/confluence"
	"roundup/internal/core"
	"roundup/internal/delivery"
	"roundup/internal/digest"
	"roundup/internal/logger"
	"roundup/internal/summarize"
	"roundup/internal/zulip"
)

// confluenceBaseURL resolves relative meeting links on index pages.
const confluenceBaseURL = "https://confluence.hl7.org"

// NewRunCmd creates the run command. It scrapes every enabled source, builds
// the digest and delivers it.
func NewRunCmd() *cobra.Command {
	var (
		dryRun     bool
		textOnly   bool
		recipients []string
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape all sources, build the digest, and send it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dryRun {
				cfg.DryRun = true
			}
			if len(recipients) > 0 {
				cfg.Email.Recipients = recipients
			}
			return runDigest(cmd, cfg, textOnly)
		},
	}

	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "build the digest but do not send email")
	runCmd.Flags().BoolVar(&textOnly, "text-only", false, "print the plain text digest to stdout instead of sending")
	runCmd.Flags().StringSliceVar(&recipients, "to", nil, "override configured recipients")

	return runCmd
}

// newSummarizer builds a Gemini summarizer for the given prompt template, or
// nil when no API key is configured.
func newSummarizer(cfg *config.Config, promptTemplate string) summarize.Summarizer {
	if cfg.Gemini.APIKey == "" {
		logger.Info("No Gemini API key configured, using fallback summaries")
		return nil
	}
	client, err := summarize.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model, promptTemplate)
	if err != nil {
		logger.Warn("Failed to initialize Gemini client, using fallback summaries", "error", err.Error())
		return nil
	}
	return client
}

func runDigest(cmd *cobra.Command, cfg *config.Config, textOnly bool) error {
	ctx := cmd.Context()
	started := time.Now()

	var pages []core.PageContent
	if cfg.Processing.EnableConfluence {
		scraper := confluence.NewScraper(confluenceBaseURL, cfg.Processing.FetchTimeoutDuration(),
			newSummarizer(cfg, summarize.MeetingPromptTemplate))
		pages = scraper.ScrapeAll(ctx, cfg.Sources.Confluence)
	}

	var threads []core.ChatThreadContent
	if cfg.Processing.EnableZulip {
		client, err := zulip.NewClient(cfg.Zulip, cfg.Processing.FetchTimeoutDuration())
		if err != nil {
			logger.Warn("Zulip disabled", "reason", err.Error())
		} else {
			aggregator := zulip.NewAggregator(client, cfg.Processing.LookbackDays, cfg.Processing.RecentHours,
				newSummarizer(cfg, summarize.TopicPromptTemplate))
			threads = aggregator.ScrapeAll(ctx, cfg.Sources.Zulip)
		}
	}

	// A quiet run still produces and delivers an all-empty digest so
	// subscribers see the "no updates" state.
	if len(pages) == 0 && len(threads) == 0 {
		logger.Warn("No content scraped from any source, digest will be empty")
	}

	d := digest.CreateDigest(pages, threads, time.Now().UTC())
	subject := digest.FormatSubject(digest.DefaultTitle, d.Date)
	bodyText := d.ToPlainText()

	if textOnly {
		fmt.Fprintln(cmd.OutOrStdout(), subject)
		fmt.Fprintln(cmd.OutOrStdout(), strings.Repeat("=", len(subject)))
		fmt.Fprintln(cmd.OutOrStdout(), bodyText)
		logRunStats(started, pages, threads)
		return nil
	}

	bodyHTML, err := digest.RenderHTML(d, digest.DefaultTitle)
	if err != nil {
		return fmt.Errorf("failed to render digest HTML: %w", err)
	}

	sender, err := delivery.NewSender(ctx, cfg.Email.SenderEmail)
	if err != nil {
		return err
	}
	if !cfg.DryRun {
		if err := sender.VerifySender(ctx); err != nil {
			return err
		}
	}

	result, err := sender.SendDigest(ctx, subject, bodyText, bodyHTML, cfg.Email.Recipients, cfg.DryRun)
	if err != nil {
		return err
	}

	logger.Info("Digest delivered", "message_id", result.MessageID, "recipients", len(result.Recipients))
	logRunStats(started, pages, threads)
	return nil
}

func logRunStats(started time.Time, pages []core.PageContent, threads []core.ChatThreadContent) {
	logger.Info("Run complete",
		"pages", len(pages),
		"channels", len(threads),
		"elapsed", time.Since(started).Round(time.Millisecond).String())
}
