// Command qris recovers the plaintext search query typed into an
// incremental-search web page from a passive TLS capture, without
// decrypting any traffic. It walks a classic pcap file down to TLS
// application-data records, reconstructs the longest keystroke
// subsequence consistent with each observed stream's ciphertext-size
// deltas, and ranks every dictionary query consistent with that
// subsequence by typing rhythm.
//
// Usage:
//
//	qris [--website NAME] [--chinese] [--queryset PATH] [--bigrams PATH]
//	     [--trident] [--topk K] [--registry PATH] [--models-dir PATH]
//	     [--verbose] [--log-level LEVEL] <capture-file>
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"qris/internal/capture"
	"qris/internal/config"
	"qris/internal/correlate"
	"qris/internal/logger"
	"qris/internal/metrics"
	"qris/internal/qerr"
	"qris/internal/queryindex"
	"qris/internal/rank"
	"qris/internal/siteprofile"
	"qris/internal/stream"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "qris: %v\n", err)
		os.Exit(4)
	}

	log := logger.New("CLI", cfg.LogLevel)
	m := metrics.New()

	err = run(cfg, log, m)
	if cfg.Verbose {
		printSnapshot(m.Snapshot())
	}
	if err != nil {
		log.Errorf("run", "%v", err)
		os.Exit(qerr.ExitCode(err))
	}
}

func run(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) error {
	registry, err := siteprofile.NewRegistry()
	if err != nil {
		return err
	}
	overrides, err := config.LoadRegistryOverrides(cfg.Registry)
	if err != nil {
		return qerr.Wrap(qerr.ErrBadSiteProfile, "registry override: %v", err)
	}
	for _, e := range overrides {
		if err := registry.Add(e); err != nil {
			return qerr.Wrap(qerr.ErrBadSiteProfile, "registry override %q: %v", e.Name, err)
		}
	}

	profile, err := resolveSite(cfg, registry, log)
	if err != nil {
		return err
	}

	log.Infof("capture", "loading %s for server_name=%s", cfg.CaptureFile, profile.ServerName)
	obs, err := capture.LoadObservations(cfg.CaptureFile, profile.ServerName)
	if err != nil {
		return err
	}
	log.Debugf("capture", "%d application-data observation(s) after retransmission dedup", len(obs))
	m.StreamsScanned.Add(int64(len(obs)))

	lasStart := time.Now()
	traces, err := correlate.Run(obs, profile, cfg.Chinese, cfg.Trident)
	m.RecordLASLatency(time.Since(lasStart))
	if err != nil {
		return err
	}
	m.LASRebuilds.Add(int64(len(traces)))
	log.Infof("correlate", "produced %d candidate trace(s)", len(traces))

	idx, err := buildIndex(cfg, profile, log, m)
	if err != nil {
		return err
	}

	log.Debugf("rank", "scoring %d trace(s) against %d query row(s), topk=%d", len(traces), len(idx.Rows), cfg.TopK)
	rankStart := time.Now()
	best := rankAll(idx, traces, cfg.Chinese, cfg.TopK, m)
	m.RecordRankLatency(time.Since(rankStart))

	printResults(best)
	return nil
}

func resolveSite(cfg *config.Config, registry *siteprofile.Registry, log *logger.Logger) (*siteprofile.Profile, error) {
	if cfg.Website != "" {
		p, ok := registry.Lookup(cfg.Website)
		if !ok {
			return nil, qerr.Wrap(qerr.ErrUnsupportedSite, "unknown site %q (known: %v)", cfg.Website, registry.Names())
		}
		return p, nil
	}

	log.Info("detect", "no --website given, scanning capture's ClientHello")
	hello, err := capture.DetectServerName(cfg.CaptureFile)
	if err != nil {
		return nil, err
	}
	p, ok := registry.DetectByServerName(hello)
	if !ok {
		return nil, qerr.Wrap(qerr.ErrUnsupportedSite, "no known site matched the capture's ClientHello")
	}
	log.Infof("detect", "auto-detected site=%s", p.Name)
	return p, nil
}

func buildIndex(cfg *config.Config, profile *siteprofile.Profile, log *logger.Logger, m *metrics.Metrics) (*queryindex.Index, error) {
	queries, err := queryindex.LoadQueries(cfg.QuerySet)
	if err != nil {
		return nil, err
	}
	var bigrams map[[2]rune]queryindex.Bigram
	if cfg.Bigrams != "" {
		bigrams, err = queryindex.LoadBigrams(cfg.Bigrams)
		if err != nil {
			return nil, err
		}
	}

	cachePath := filepath.Join(cfg.ModelsDir, cfg.CacheFile)
	cache, err := queryindex.OpenCache(cachePath)
	if err != nil {
		log.Warnf("cache", "continuing without a persisted cache: %v", err)
	} else {
		defer cache.Close()
	}

	if cache != nil {
		if idx, ok := cache.Get(profile.Name, cfg.Chinese, profile.TrimSpace, len(queries)); ok {
			m.CacheHits.Add(1)
			log.Info("cache", "reused persisted query index")
			return idx, nil
		}
		m.CacheMisses.Add(1)
	}

	var romanizer queryindex.Romanizer
	if cfg.Chinese {
		return nil, qerr.Wrap(qerr.ErrBadSiteProfile, "--chinese requires a Romanizer wired in at build time (none bundled, see DESIGN.md)")
	}

	idx := queryindex.Build(profile, cfg.Chinese, queries, bigrams, romanizer)
	if cache != nil {
		if err := cache.Put(profile.Name, cfg.Chinese, profile.TrimSpace, len(queries), idx); err != nil {
			log.Warnf("cache", "failed to persist query index: %v", err)
		}
	}
	return idx, nil
}

// rankAll narrows and scores every trace independently and truncates
// each trace's ranked list to topK before concatenating, so a
// high-volume trace can never crowd out another trace's candidates
// (spec.md §4.6/§5: top-K is per candidate trace, traces concatenated
// in order).
func rankAll(idx *queryindex.Index, traces []*stream.Trace, chinese bool, topK int, m *metrics.Metrics) []rank.Candidate {
	var all []rank.Candidate
	for _, t := range traces {
		candidates := rank.FilterByLength(idx, t)
		m.CandidatesLength.Add(int64(len(candidates)))
		candidates = rank.FilterByToken(candidates, t)
		m.CandidatesToken.Add(int64(len(candidates)))
		candidates = rank.FilterByPattern(candidates, t)
		ranked := rank.RankByRhythm(candidates, t, chinese)
		m.CandidatesRhythm.Add(int64(len(ranked)))
		if topK > 0 && topK < len(ranked) {
			ranked = ranked[:topK]
		}
		all = append(all, ranked...)
	}
	return all
}

func printResults(candidates []rank.Candidate) {
	if len(candidates) == 0 {
		fmt.Println("no candidate query survived ranking")
		return
	}
	for i, c := range candidates {
		fmt.Printf("%d. %s (score=%.4f)\n", i+1, c.Row.Query, c.Score)
	}
}

func printSnapshot(s metrics.Snapshot) {
	fmt.Fprintf(os.Stderr, "\n--- metrics ---\n")
	fmt.Fprintf(os.Stderr, "streams scanned:    %d\n", s.Streams.Scanned)
	fmt.Fprintf(os.Stderr, "LAS rebuilds:        %d\n", s.Streams.LASRebuilds)
	fmt.Fprintf(os.Stderr, "candidates (length): %d\n", s.Candidates.AfterLength)
	fmt.Fprintf(os.Stderr, "candidates (token):  %d\n", s.Candidates.AfterToken)
	fmt.Fprintf(os.Stderr, "candidates (rhythm): %d\n", s.Candidates.AfterRhythm)
	fmt.Fprintf(os.Stderr, "cache hits/misses:   %d/%d\n", s.Cache.Hits, s.Cache.Misses)
	fmt.Fprintf(os.Stderr, "LAS latency:         %+v\n", s.Latency.LASMs)
	fmt.Fprintf(os.Stderr, "rank latency:        %+v\n", s.Latency.RankMs)
	fmt.Fprintf(os.Stderr, "uptime:              %.2fs\n", s.UptimeSecs)
}
