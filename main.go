package main

import (
	"context"
	"flag"
	"strings"

	"github.com/sirupsen/logrus"

	"video-filter/pkg/config"
	"video-filter/pkg/filter"
	"video-filter/pkg/job"
	"video-filter/pkg/source"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults cover the barber run)")
	sourceURL := flag.String("source", "", "override the source dataset location")
	keywords := flag.String("keywords", "", "override the match keywords (comma separated)")
	outputPath := flag.String("output", "", "override the output parquet path")
	flag.Parse()

	log := logrus.New()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.WithError(err).Fatal("loading config")
		}
		cfg = loaded
	}

	if *sourceURL != "" {
		cfg.Source.URL = *sourceURL
	}
	if *keywords != "" {
		cfg.Keywords = splitKeywords(*keywords)
	}
	if *outputPath != "" {
		cfg.Output.Path = *outputPath
	}

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	src, err := source.New(cfg.Source)
	if err != nil {
		log.WithError(err).Fatal("building source")
	}

	pred := filter.NewKeywordPredicate(cfg.Source.TextField, cfg.Keywords)

	jb := job.New(cfg, src, pred, log)
	if err := jb.Run(context.Background()); err != nil {
		log.WithError(err).Fatal("run failed")
	}
}

func splitKeywords(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
