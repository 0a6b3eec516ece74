//go:build ignore

// Package main generates a synthetic plant database for trying out and
// profiling refreshes.
// Usage: go run scripts/generate-plants.go -plants 5000 -output plants.db
package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"maps"
	"math/rand"
	"os"
	"slices"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/Aman-CERP/plantsearch/internal/store"
)

var (
	numPlants = flag.Int("plants", 1000, "Number of plants to generate")
	output    = flag.String("output", "plants.db", "Output database file (overwritten)")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
	bare      = flag.Float64("bare", 0.2, "Share of plants without properties in a locale")
)

var genera = []string{
	"Malus", "Buddleja", "Hedera", "Lavandula", "Rosa", "Prunus", "Salvia",
	"Geranium", "Hosta", "Sambucus", "Viburnum", "Cornus", "Ilex", "Thymus",
}

var epithets = []string{
	"domestica", "davidii", "helix", "angustifolia", "canina", "avium",
	"officinalis", "sanguineum", "sieboldiana", "nigra", "opulus", "mas",
	"aquifolium", "vulgaris",
}

// localeProperties lists, per locale, property names and the values drawn
// for them. Several values are keywords of the built-in vocabulary so the
// derived flags fire.
var localeProperties = map[string]map[string][]string{
	"nl": {
		"vrucht":      {"eetbaar", "giftig", "decoratief"},
		"gebruik":     {"bijenplant", "waardplant voor vlinders", "haag", "bodembedekker"},
		"bloem":       {"wit", "roze", "paars", "geel"},
		"standplaats": {"zon", "halfschaduw", "schaduw"},
	},
	"en": {
		"fruit":  {"edible", "poisonous", "ornamental"},
		"use":    {"bee plant", "butterfly host plant", "hedge", "ground cover"},
		"flower": {"white", "pink", "purple", "yellow"},
		"site":   {"sun", "partial shade", "shade"},
	},
	"de": {
		"frucht":     {"essbar", "giftig"},
		"verwendung": {"Bienenpflanze", "Wirtpflanze für Schmetterlinge", "Hecke"},
		"bluete":     {"weiß", "rosa"},
	},
	"fr": {
		"fruit":       {"comestible", "toxique"},
		"utilisation": {"hôte pour les papillons", "haie"},
		"fleur":       {"blanc", "rose"},
	},
}

func main() {
	flag.Parse()
	if err := generate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func generate() error {
	rng := rand.New(rand.NewSource(*seed))

	_ = os.Remove(*output)
	db, err := sql.Open("sqlite", *output)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(store.Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	insertPlant, err := tx.Prepare(`INSERT INTO plant (id, identifier, names, images, created_at, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'), datetime('now'))`)
	if err != nil {
		return err
	}
	insertProperty, err := tx.Prepare(`INSERT INTO property (plant_id, locale, name, "values", type) VALUES (?, ?, ?, ?, 'check')`)
	if err != nil {
		return err
	}

	rows := 0
	for id := 1; id <= *numPlants; id++ {
		genus := genera[rng.Intn(len(genera))]
		name := fmt.Sprintf("%s %s", genus, epithets[rng.Intn(len(epithets))])
		identifier := fmt.Sprintf("%s-%d", strings.ToLower(genus), id)

		var images []string
		if rng.Intn(3) == 0 {
			images = []string{identifier + ".jpg"}
		}
		if _, err := insertPlant.Exec(id, identifier, mustJSON([]string{name}), mustJSON(images)); err != nil {
			return fmt.Errorf("insert plant %d: %w", id, err)
		}

		// Sorted iteration keeps the output stable for a given seed.
		for _, loc := range slices.Sorted(maps.Keys(localeProperties)) {
			if rng.Float64() < *bare {
				continue
			}
			props := localeProperties[loc]
			for _, prop := range slices.Sorted(maps.Keys(props)) {
				choices := props[prop]
				if rng.Intn(2) == 0 {
					continue
				}
				values := pick(rng, choices)
				if _, err := insertProperty.Exec(id, loc, prop, mustJSON(values)); err != nil {
					return fmt.Errorf("insert property %s/%s of plant %d: %w", loc, prop, id, err)
				}
				rows++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	fmt.Printf("Generated %d plants with %d property rows in %s\n", *numPlants, rows, *output)
	return nil
}

// pick returns one to three distinct choices.
func pick(rng *rand.Rand, choices []string) []string {
	n := 1 + rng.Intn(min(3, len(choices)))
	perm := rng.Perm(len(choices))[:n]
	out := make([]string, n)
	for i, j := range perm {
		out[i] = choices[j]
	}
	return out
}

func mustJSON(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
