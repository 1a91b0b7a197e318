// edit-bgen edits BGEN header metadata in place: the free-data field, and
// removal of the sample-identifier block. Without -really it performs a dry
// run.
package main

import (
	"os"

	bgen "github.com/CreRecombinase/bgen17"
	"github.com/CreRecombinase/bgen17/internal/appcontext"
)

const (
	programName    = "edit-bgen"
	programVersion = bgen.BGENVersion
)

func declareOptions() *appcontext.OptionProcessor {
	options := appcontext.NewOptionProcessor(programName)
	options.SetHelpOption("-help")

	options.DeclareGroup("Input / output file options")
	options.Declare("-g").
		SetDescription("Path of bgen file(s) to edit.").
		SetTakesValuesUntilNextOption().
		SetIsRequired()
	options.Declare("-log").
		SetDescription("Tee console output to the given file.").
		SetTakesSingleValue()

	options.DeclareGroup("Actions")
	options.Declare("-set-free-data").
		SetDescription("Set new 'free data' field. The argument must be a string with length exactly equal" +
			" to the length of the existing free data field in each edited file.").
		SetTakesSingleValue()
	options.Declare("-remove-sample-identifiers").
		SetDescription("Remove sample identifiers from the file.  This zeroes out the sample ID block, if present.")
	options.Declare("-really").
		SetDescription("Really make changes (without this option a dry run is performed with no changes to files.)")

	return options
}

func main() {
	os.Exit(appcontext.ReturnCode(run(os.Args[1:])))
}

func run(args []string) error {
	options := declareOptions()
	app, err := appcontext.New(programName, programVersion, options, args)
	if err != nil {
		return err
	}
	defer app.Close()

	filenames := options.GetValues("-g")
	really := options.Check("-really")

	files := make([]*os.File, 0, len(filenames))
	for _, filename := range filenames {
		mode := os.O_RDWR
		if !really {
			mode = os.O_RDONLY
		}
		file, err := os.OpenFile(filename, mode, 0)
		if err != nil {
			return app.Fail("Error opening %q: %v\n", filename, err)
		}
		defer file.Close()
		files = append(files, file)
	}

	somethingDone := false

	if options.Check("-set-free-data") {
		somethingDone = true
		freeData := options.Get("-set-free-data")
		for i, filename := range filenames {
			if err := bgen.EditFreeData(filename, files[i], freeData, really); err != nil {
				return app.Fail("%v\n", err)
			}
			app.Logger.Printf("Setting free data for %q to %q... %s\n", filename, freeData, outcome(really))
		}
	}

	if options.Check("-remove-sample-identifiers") {
		somethingDone = true
		for i, filename := range filenames {
			removed, err := bgen.RemoveSampleIdentifiers(filename, files[i], really)
			if err != nil {
				return app.Fail("%v\n", err)
			}
			if !removed {
				app.Logger.Printf("Checking sample identifiers for %q... no identifiers present; skipping this file.\n", filename)
				continue
			}
			app.Logger.Printf("Checking sample identifiers for %q... removing... %s\n", filename, outcome(really))
		}
	}

	if !somethingDone {
		app.Logger.Printf("!! Nothing to do.\n")
	}

	return nil
}

func outcome(really bool) string {
	if really {
		return "ok."
	}
	return "ok (dry run; use -really to really make this change)."
}
