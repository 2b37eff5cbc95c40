package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
)

// Most commands need this, so... yeah
func PrintJson(obj interface{}) {
	rawjson, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		log.Fatalln("Couldn't serialize json: ", err)
	}
	fmt.Println(string(rawjson))
}

func forceCreate(fp string) *os.File {
	f, err := os.Create(fp)
	fatalIfErr(fp, "create write file", err)
	return f
}

// HexDump prints rows of 16 bytes with their absolute flash addresses.
func HexDump(w io.Writer, address uint32, data []byte) {
	for i := 0; i < len(data); i += 16 {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		fmt.Fprintf(w, "%08x ", address+uint32(i))
		for j := i; j < end; j++ {
			fmt.Fprintf(w, " %02x", data[j])
		}
		fmt.Fprintln(w)
	}
}
