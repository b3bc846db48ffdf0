package main

import "github.com/joho/godotenv"

func main() {
	// A .env in the working directory is optional; variables can also come
	// from the real environment.
	_ = godotenv.Load()

	Execute()
}
