package main

import "github.com/thereayou/classpulse/cmd/server"

func main() {
	s := server.NewServer()
	s.Run()
}
