// Package database provides connection management, migrations, foreign key
// handling, SQL seed files, configuration types, logging and health checks
// for the member/team store, built on top of Bun.
package database
