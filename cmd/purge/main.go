// Command purge is a development maintenance tool, not part of the
// authentication contract. By default it wipes all local accounts and
// verification tokens; with -expired it only sweeps tokens past their
// expiry. Tokens go first on a full wipe so the cascade never hides a
// partial one.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/essaybros/web/internal/config"
	"github.com/essaybros/web/internal/repository"
)

func main() {
	expiredOnly := flag.Bool("expired", false, "only delete expired verification tokens")
	flag.Parse()

	cfg := config.LoadConfig()
	ctx := context.Background()

	dbPool, err := pgxpool.New(ctx, cfg.DBUrl)
	if err != nil {
		log.Fatalf("unable to connect to database: %v", err)
	}
	defer dbPool.Close()

	if *expiredOnly {
		n, err := repository.NewTokenRepository(dbPool).DeleteExpired(ctx)
		if err != nil {
			log.Fatalf("error sweeping expired tokens: %v", err)
		}
		log.Printf("swept %d expired verification tokens", n)
		return
	}

	tokens, err := dbPool.Exec(ctx, `DELETE FROM verification_tokens`)
	if err != nil {
		log.Fatalf("error clearing tokens: %v", err)
	}
	log.Printf("cleared %d verification tokens", tokens.RowsAffected())

	accounts, err := dbPool.Exec(ctx, `DELETE FROM accounts`)
	if err != nil {
		log.Fatalf("error clearing accounts: %v", err)
	}
	log.Printf("cleared %d accounts; local signup accounts are removed", accounts.RowsAffected())
}
