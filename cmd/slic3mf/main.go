package main

import "github.com/kjplatz/slic3mf/internal/cmd"

func main() {
	cmd.Parse()
}
