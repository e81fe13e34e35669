// Package config loads typed configuration structs from environment variables
// using github.com/caarlos0/env struct tags, with optional dotenv files read
// through github.com/joho/godotenv.
//
// Every package that needs settings declares its own Config struct with
// env/envDefault tags; the binary composes them into one struct and calls
// Load once at start-up.
package config
