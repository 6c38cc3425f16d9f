package main

import "github.com/ValentinKolb/stacKV/cmd"

func main() {
	cmd.Execute()
}
