package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LangChat/ai-tutorials/internal/cli"
	"github.com/LangChat/ai-tutorials/internal/config"
	"github.com/LangChat/ai-tutorials/internal/embedding"
	"github.com/LangChat/ai-tutorials/internal/vecmath"
)

// vectorOptions are shared by similarity and rank.
type vectorOptions struct {
	output  string
	literal bool
}

func (v *vectorOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&v.output, "output", "o", "text", "output format: text or json")
	cmd.Flags().BoolVar(&v.literal, "vectors", false, "treat arguments as comma-separated vectors instead of text")
}

// vectorize turns args into vectors, either by parsing them or by
// embedding them with the configured embedder.
func (v *vectorOptions) vectorize(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) ([][]float32, error) {
	if v.literal {
		out := make([][]float32, len(args))
		for i, a := range args {
			vec, err := parseVector(a)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i+1, err)
			}
			out[i] = vec
		}
		return out, nil
	}
	emb, err := embedding.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer emb.Close()
	return emb.EmbedBatch(ctx, args)
}

// parseVector parses "1, 0.5, -2" into a vector.
func parseVector(s string) ([]float32, error) {
	fields := strings.Split(s, ",")
	out := make([]float32, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		x, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q", f)
		}
		out = append(out, float32(x))
	}
	if len(out) == 0 {
		return nil, vecmath.ErrEmptyInput
	}
	return out, nil
}

func newSimilarityCmd(opts *globalOptions) *cobra.Command {
	vo := &vectorOptions{}
	cmd := &cobra.Command{
		Use:   "similarity <a> <b>",
		Short: "Cosine similarity and Euclidean distance between two texts",
		Example: `  langchat similarity "The cat sat" "A cat was sitting"
  langchat similarity --vectors "1,0,0" "0.7,0.7,0" -o json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(vo.output)
			if err != nil {
				return err
			}
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			vecs, err := vo.vectorize(cmd.Context(), cfg, logger, args)
			if err != nil {
				return err
			}
			cos, err := vecmath.CosineSimilarity(vecs[0], vecs[1])
			if err != nil {
				return err
			}
			dist, err := vecmath.EuclideanDistance(vecs[0], vecs[1])
			if err != nil {
				return err
			}
			return cli.WriteSimilarity(cmd.OutOrStdout(), &cli.Similarity{A: args[0], B: args[1], Cosine: cos, Euclidean: dist}, format)
		},
	}
	vo.register(cmd)
	return cmd
}

func newRankCmd(opts *globalOptions) *cobra.Command {
	vo := &vectorOptions{}
	var k int
	cmd := &cobra.Command{
		Use:   "rank <query> <candidate>...",
		Short: "Rank candidate texts by similarity to a query",
		Example: `  langchat rank "fast cars" "sports car review" "banana bread recipe" "racing news" -k 2
  langchat rank --vectors "1,0" "0,1" "1,1" "2,0.1"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(vo.output)
			if err != nil {
				return err
			}
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			vecs, err := vo.vectorize(cmd.Context(), cfg, logger, args)
			if err != nil {
				return err
			}
			query, candidates := vecs[0], vecs[1:]
			best, err := vecmath.FindMostSimilar(query, candidates)
			if err != nil {
				return err
			}
			top, err := vecmath.FindTopKSimilar(query, candidates, k)
			if err != nil {
				return err
			}
			return cli.WriteRanking(cmd.OutOrStdout(), cli.NewRanking(args[0], args[1:], best, top), format)
		},
	}
	vo.register(cmd)
	cmd.Flags().IntVarP(&k, "top-k", "k", 3, "number of ranked candidates to show (<= 0 shows all)")
	return cmd
}
