// cat-bgen concatenates BGEN files that share a sample set and flags into
// one output file, fixing up the variant count in the header.
package main

import (
	"io"
	"os"

	bgen "github.com/CreRecombinase/bgen17"
	"github.com/CreRecombinase/bgen17/internal/appcontext"
)

const (
	programName    = "cat-bgen"
	programVersion = bgen.BGENVersion
)

func declareOptions() *appcontext.OptionProcessor {
	options := appcontext.NewOptionProcessor(programName)
	options.SetHelpOption("-help")

	options.DeclareGroup("Input / output file options")
	options.Declare("-g").
		SetDescription("Path of bgen file(s) to concatenate. " +
			"These must all be bgen files containing the same set of samples (in the same order). " +
			"They must all be the same bgen version and be stored with the same flags.").
		SetTakesValuesUntilNextOption().
		SetIsRequired()
	options.Declare("-og").
		SetDescription("Path of bgen file to output.").
		SetTakesSingleValue().
		SetIsRequired()
	options.Declare("-set-free-data").
		SetDescription("Specify that cat-bgen should set free data in the resulting file to the given string value.").
		SetTakesSingleValue()
	options.Declare("-omit-sample-identifier-block").
		SetDescription("Specify that cat-bgen should omit the sample identifier block in the output, even" +
			" if one is present in the first file specified to -g.")
	options.Declare("-clobber").
		SetDescription("Specify that cat-bgen should overwrite existing output file if it exists.")
	options.Declare("-log").
		SetDescription("Tee console output to the given file.").
		SetTakesSingleValue()

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

	outputFilename := options.Get("-og")
	if _, err := os.Stat(outputFilename); err == nil && !options.Check("-clobber") {
		return app.Fail("Output file %q exists.  Use -clobber if you want me to overwrite it.\n", outputFilename)
	}

	inputFilenames := options.GetValues("-g")
	if len(inputFilenames) == 0 {
		return app.Fail("No input files specified; quitting.\n")
	}

	inputs := make([]io.ReadSeeker, 0, len(inputFilenames))
	for _, filename := range inputFilenames {
		file, err := os.Open(filename)
		if err != nil {
			return app.Fail("Error opening input file %q: %v\n", filename, err)
		}
		defer file.Close()
		inputs = append(inputs, file)
	}

	out, err := os.Create(outputFilename)
	if err != nil {
		return app.Fail("Error opening output file %q: %v\n", outputFilename, err)
	}
	defer out.Close()

	concatOpts := bgen.ConcatOptions{
		OmitSampleIdentifierBlock: options.Check("-omit-sample-identifier-block"),
		Logf:                      app.Logger.Printf,
	}
	if options.Check("-set-free-data") {
		freeData := options.Get("-set-free-data")
		concatOpts.SetFreeData = &freeData
	}

	result, err := bgen.Concatenate(inputFilenames, inputs, out, concatOpts)
	if err != nil {
		return app.Fail("%v\n", err)
	}

	app.Logger.Printf("Finished writing %q (%d samples, %d variants).\n",
		outputFilename, result.NumberOfSamples, result.NumberOfVariants)

	return nil
}
