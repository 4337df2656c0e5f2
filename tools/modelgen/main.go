// Command modelgen regenerates the gorm models for the postgres run log
// from a migrated database.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gen"
	"gorm.io/gorm"
)

var runLogTables = []string{"step_runs", "step_events"}

func main() {
	var dsn, out string
	flag.StringVar(&dsn, "dsn", os.Getenv("BRIDGE_DB_DSN"), "postgres dsn")
	flag.StringVar(&out, "out", "internal/adapter/repo/gorm/query", "output dir for generated query code")
	flag.Parse()

	if dsn == "" {
		log.Fatal("missing --dsn or BRIDGE_DB_DSN")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	g := gen.NewGenerator(gen.Config{
		OutPath:       out,
		ModelPkgPath:  "model",
		Mode:          gen.WithoutContext,
		FieldNullable: true,
	})
	g.UseDB(db)
	for _, table := range runLogTables {
		g.GenerateModel(table)
	}
	g.Execute()

	fmt.Printf("generated models for %v under %s\n", runLogTables, out)
}
