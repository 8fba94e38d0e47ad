// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/biokg-builder/internal/graphstore"
	"github.com/pdiddy/biokg-builder/internal/pipeline"
	"github.com/pdiddy/biokg-builder/pkg/types"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Query or export a stored knowledge graph",
	Long: `Graph operates on the SQLite database a build run left behind. Use
subcommands to search entities, filter relationship edges, walk the
neighborhood of an entity, or export the whole graph.`,
}

// --- retrieve subcommand ---

var graphRetrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Search graph entities with full-text search and filters",
	Long: `Retrieve searches entity names and aliases with FTS5 full-text search,
optionally filtered by entity type.`,
	RunE: runGraphRetrieve,
}

func runGraphRetrieve(cmd *cobra.Command, args []string) error {
	store, err := openGraphStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	entityType, _ := cmd.Flags().GetString("type")
	limit, _ := cmd.Flags().GetInt("limit")

	entities, err := store.Entities(cmd.Context(), graphstore.EntityQuery{
		Query:      strings.Join(args, " "),
		Type:       types.EntityType(entityType),
		MaxResults: limit,
	})
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return writeJSON(entities)
	}
	if len(entities) == 0 {
		fmt.Println("No entities found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-30s  %-10s  %-8s  %s\n", "Name", "Type", "Articles", "Aliases")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 90))
	for _, e := range entities {
		name := e.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		aliases := strings.Join(e.Aliases, ", ")
		if len(aliases) > 40 {
			aliases = aliases[:37] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-30s  %-10s  %-8d  %s\n", name, e.Type, len(e.Articles), aliases)
	}
	fmt.Fprintf(os.Stdout, "\n%d entities\n", len(entities))
	return nil
}

// --- edges subcommand ---

var graphEdgesCmd = &cobra.Command{
	Use:   "edges",
	Short: "List relationship edges with filters",
	Long: `Edges lists the graph's relationship edges, filtered by endpoint entity,
relation kind, minimum confidence, or conflict status.`,
	RunE: runGraphEdges,
}

func runGraphEdges(cmd *cobra.Command, args []string) error {
	store, err := openGraphStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	entity, _ := cmd.Flags().GetString("entity")
	relation, _ := cmd.Flags().GetString("relation")
	minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")
	conflictsOnly, _ := cmd.Flags().GetBool("conflicts")
	limit, _ := cmd.Flags().GetInt("limit")

	edges, err := store.Edges(cmd.Context(), graphstore.EdgeQuery{
		Entity:        entity,
		Relation:      types.RelationKind(relation),
		MinConfidence: minConfidence,
		ConflictsOnly: conflictsOnly,
		MaxResults:    limit,
	})
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return writeJSON(edges)
	}
	if len(edges) == 0 {
		fmt.Println("No edges found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-25s  %-16s  %-25s  %-8s  %-10s  %s\n",
		"Source", "Relation", "Target", "Conf", "Polarity", "Articles")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	for _, e := range edges {
		polarity := string(e.Polarity)
		if e.Conflict {
			polarity += "!"
		}
		fmt.Fprintf(os.Stdout, "%-25s  %-16s  %-25s  %-8.2f  %-10s  %d\n",
			truncate(e.Source, 25), e.Relation, truncate(e.Target, 25),
			e.Confidence, polarity, len(e.Articles))
	}
	fmt.Fprintf(os.Stdout, "\n%d edges (! marks polarity conflicts)\n", len(edges))
	return nil
}

// --- neighbors subcommand ---

var graphNeighborsCmd = &cobra.Command{
	Use:   "neighbors <entity>",
	Short: "Show the subgraph around an entity",
	Long: `Neighbors walks the graph outward from the named entity up to --depth
hops and prints the resulting subgraph.`,
	Args: cobra.ExactArgs(1),
	RunE: runGraphNeighbors,
}

func runGraphNeighbors(cmd *cobra.Command, args []string) error {
	store, err := openGraphStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	depth, _ := cmd.Flags().GetInt("depth")
	sub, err := store.Neighbors(cmd.Context(), args[0], depth)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return writeJSON(sub)
	}

	fmt.Fprintf(os.Stdout, "%d entities within %d hop(s) of %s:\n", len(sub.Entities), depth, args[0])
	for _, e := range sub.Entities {
		fmt.Fprintf(os.Stdout, "  %s (%s)\n", e.Name, e.Type)
	}
	fmt.Fprintf(os.Stdout, "%d edges:\n", len(sub.Edges))
	for _, e := range sub.Edges {
		fmt.Fprintf(os.Stdout, "  %s -[%s]-> %s (%.2f)\n", e.Source, e.Relation, e.Target, e.Confidence)
	}
	return nil
}

// --- export subcommand ---

var graphExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the stored graph to YAML or JSON",
	RunE:  runGraphExport,
}

func runGraphExport(cmd *cobra.Command, args []string) error {
	store, err := openGraphStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "yaml", "":
		return store.ExportYAML(cmd.Context(), os.Stdout)
	case "json":
		return store.ExportJSON(cmd.Context(), os.Stdout)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
}

// --- shared helpers ---

// openGraphStore locates the run database from --db or --keyword and opens it.
func openGraphStore(cmd *cobra.Command) (*graphstore.Store, error) {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		keyword, _ := cmd.Flags().GetString("keyword")
		if keyword == "" {
			return nil, fmt.Errorf("provide --db or --keyword to locate the graph database")
		}
		outputDir, _ := cmd.Flags().GetString("output-dir")
		dbPath = filepath.Join(pipeline.OutputDirFor(outputDir, keyword), pipeline.DatabaseFile)
	}
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("graph database not found at %s: run build first", dbPath)
	}

	maxResults, _ := cmd.Flags().GetInt("max-results")
	return graphstore.Open(dbPath, types.GraphStoreConfig{MaxResults: maxResults})
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	graphCmd.PersistentFlags().String("db", "", "path to the graph database (overrides --keyword)")
	graphCmd.PersistentFlags().String("keyword", "", "keyword whose stored run to open")
	graphCmd.PersistentFlags().Int("max-results", 20, "default maximum number of query results")

	graphRetrieveCmd.Flags().String("type", "", "filter by entity type: gene, protein, disease, chemical, process, other")
	graphRetrieveCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	graphRetrieveCmd.Flags().Bool("json", false, "output results as JSON")

	graphEdgesCmd.Flags().String("entity", "", "filter by endpoint entity name")
	graphEdgesCmd.Flags().String("relation", "", "filter by relation kind")
	graphEdgesCmd.Flags().Float64("min-confidence", 0, "drop edges below this confidence")
	graphEdgesCmd.Flags().Bool("conflicts", false, "show only edges with polarity conflicts")
	graphEdgesCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	graphEdgesCmd.Flags().Bool("json", false, "output results as JSON")

	graphNeighborsCmd.Flags().Int("depth", 1, "hop depth around the entity")
	graphNeighborsCmd.Flags().Bool("json", false, "output the subgraph as JSON")

	graphExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	graphCmd.AddCommand(graphRetrieveCmd)
	graphCmd.AddCommand(graphEdgesCmd)
	graphCmd.AddCommand(graphNeighborsCmd)
	graphCmd.AddCommand(graphExportCmd)

	rootCmd.AddCommand(graphCmd)
}
