package main

import (
	"fmt"
	"io"
	"strings"

	"deeptune/internal/screen"
)

// printState writes what the screen shows: the alert if there is one,
// otherwise the current song.
func printState(w io.Writer, st screen.State) {
	if st.Alert != nil {
		fmt.Fprintf(w, "[%s] %s\n", st.Alert.Title, st.Alert.Message)
		return
	}
	if st.Result == nil {
		return
	}

	res := st.Result
	if !res.Recognized() {
		fmt.Fprintf(w, "No match (%s)\n", res.Title)
		return
	}

	fmt.Fprintf(w, "♪ %s\n", res.Title)
	if res.Artist != "" {
		fmt.Fprintf(w, "  %s\n", res.Artist)
	}
	if res.CoverURL != "" {
		fmt.Fprintf(w, "  Cover: %s\n", res.CoverURL)
	}

	switch {
	case st.LyricsOpen:
		fmt.Fprintln(w)
		for _, line := range strings.Split(strings.TrimSpace(res.Lyrics), "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	case st.LyricsVisible:
		fmt.Fprintln(w, "  Lyrics available (--lyrics)")
	}
}
