// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command nsdump prints the contents of a Blackrock/Ripple recording
// session: its file info and its entity list.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/rippleneuro/nsfile/nssession"
)

func main() {
	var (
		flagInput  = flag.String("i", "", "input `file` (.nev or .nsN); siblings are discovered automatically")
		flagSingle = flag.Bool("single", false, "only open the named file, skip sibling discovery")
	)
	flag.Parse()
	if *flagInput == "" || flag.NArg() > 0 {
		flag.Usage()
		os.Exit(1)
	}

	var opts []nssession.Option
	if *flagSingle {
		opts = append(opts, nssession.WithSingleFile())
	}

	s, err := nssession.Open(*flagInput, opts...)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	info := s.FileInfo()
	fmt.Printf("%+v\n", info)

	for _, f := range s.Files {
		fmt.Printf("file: %s (%v)\n", f.Path, f.Parser.Format())
	}

	for i, e := range s.Entities {
		switch v := e.(type) {
		case *nssession.SegmentEntity:
			fmt.Printf("%d: segment electrode=%d label=%q items=%d\n", i, v.ElectrodeID(), v.Label(), v.ItemCount())
		case *nssession.EventEntity:
			fmt.Printf("%d: event reason=%d items=%d\n", i, v.Reason(), v.ItemCount())
		case *nssession.NeuralEntity:
			fmt.Printf("%d: neural electrode=%d unit=%d items=%d\n", i, v.ElectrodeID(), v.UnitClass(), v.ItemCount())
		case *nssession.AnalogEntity:
			fmt.Printf("%d: analog electrode=%d label=%q freq=%gHz units=%s items=%d\n", i, v.ElectrodeID(), v.Label(), v.SampleFreq(), v.Units(), v.ItemCount())
		}
	}
}
