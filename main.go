package main

import "github.com/ValentinKolb/objkv/cmd"

func main() {
	cmd.Execute()
}
