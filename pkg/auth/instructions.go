package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowAPIKeyGuide writes instructions for creating an e621 API key to w
func ShowAPIKeyGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "E621 API KEY GUIDE")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "An API key lets e621dl search with your account's blacklist and")
	fmt.Fprintln(w, "access posts hidden from anonymous users.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 1: Log in at https://e621.net")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 2: Open Account > Manage API Access")
	fmt.Fprintln(w, "   https://e621.net/users/home then \"Manage API Access\"")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 3: Create or view a key")
	fmt.Fprintln(w, "   Re-enter your password if asked, then copy the key shown.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 4: Save it")
	fmt.Fprintln(w, "   e621dl auth login --username <name>")
	fmt.Fprintln(w, "   or export E621DL_LOGIN and E621DL_API_KEY")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The key grants the same access as your password. Never share it.")
	fmt.Fprintln(w, rule)
}
