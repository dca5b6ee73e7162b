package main

import "fmt"

const banner = `
 _ __ ___  ___ _ __  _ __ ___   ___ | |__   ___   ___ | |_
| '_ ' _ \/ __| '_ \| '_ ' _ \ / _ \| '_ \ / _ \ / _ \| __|
| | | | | \__ \ |_) | | | | | | (_) | |_) | (_) | (_) | |_
|_| |_| |_|___/ .__/|_| |_| |_|\___/|_.__/ \___/ \___/ \__|
              |_|            MSPM0 BSL host programmer
`

func printBanner(quiet bool) {
	if quiet {
		return
	}
	fmt.Println(banner)
}
