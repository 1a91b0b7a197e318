// bgenix builds and queries .bgi indexes over BGEN files, and transcodes
// selections to variant lists, VCF, or BGEN v1.1.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	bgen "github.com/CreRecombinase/bgen17"
	"github.com/CreRecombinase/bgen17/internal/appcontext"
	"github.com/CreRecombinase/bgen17/internal/config"
	"github.com/CreRecombinase/bgen17/internal/progress"
)

const (
	programName    = "bgenix"
	programVersion = bgen.BGENVersion
)

func declareOptions() *appcontext.OptionProcessor {
	options := appcontext.NewOptionProcessor(programName)
	options.SetHelpOption("-help")

	options.DeclareGroup("Input / output file options")
	options.Declare("-g").
		SetDescription("Path of bgen file to operate on. A gs:// URL may also be given.").
		SetTakesSingleValue().
		SetIsRequired()
	options.Declare("-i").
		SetDescription("Path of index file to use. If not specified, " + programName + " will look for an index file of the form '<filename>.bgen.bgi'" +
			" where '<filename>.bgen' is the bgen file name specified by the -g option.").
		SetTakesSingleValue()
	options.Declare("-table").
		SetDescription("Specify the table (or view) that bgenix should read the file index from. " +
			"This only affects reading the index file. The named table or view should have the" +
			" same schema as the Variant table written by bgenix on index creation.").
		SetTakesSingleValue().
		SetDefaultValue("Variant")
	options.Declare("-log").
		SetDescription("Tee console output to the given file.").
		SetTakesSingleValue()
	options.Declare("-config").
		SetDescription("Path of a TOML file supplying defaults for -table, -compression-level and the log file.").
		SetTakesSingleValue()

	options.DeclareGroup("Indexing options")
	options.Declare("-index").
		SetDescription("Specify that bgenix should build an index for the BGEN file specified by the -g option.")
	options.Declare("-clobber").
		SetDescription("Specify that bgenix should overwrite existing index file if it exists.")
	options.Declare("-with-rowid").
		SetDescription("Create an index file that does not use the 'WITHOUT ROWID' feature." +
			" These are suitable for use with sqlite versions < 3.8.2, but may be less efficient.")

	options.DeclareGroup("Variant selection options")
	options.Declare("-incl-range").
		SetDescription("Include variants in the specified genomic interval in the output. " +
			"Each interval must be of the form <chr>:<pos1>-<pos2>; either position may be omitted, " +
			"in which case the range extends to the start or end of the chromosome as appropriate. " +
			"Position ranges are treated as closed. " +
			"If the argument is the name of a valid readable file, whitespace-separated ranges are read from it instead. " +
			"If this is specified multiple times, variants in any of the specified ranges will be included.").
		SetTakesValuesUntilNextOption()
	options.Declare("-excl-range").
		SetDescription("Exclude variants in the specified genomic interval from the output. " +
			"See the description of -incl-range for details.").
		SetTakesValuesUntilNextOption()
	options.Declare("-incl-rsids").
		SetDescription("Include variants with the specified rsid(s) in the output. " +
			"If the argument is the name of a valid readable file, whitespace-separated rsids are read from it instead.").
		SetTakesValuesUntilNextOption()
	options.Declare("-excl-rsids").
		SetDescription("Exclude variants with the specified rsid(s) from the output. " +
			"See the description of -incl-rsids for details.").
		SetTakesValuesUntilNextOption()

	options.DeclareGroup("Output options")
	options.Declare("-list").
		SetDescription("Suppress BGEN output; instead output a list of variants.")
	options.Declare("-v11").
		SetDescription("Transcode to BGEN v1.1 format. (Currently, this is only supported if the input" +
			" is in BGEN v1.2 format with 8 bits per probability, all samples are diploid," +
			" and all variants biallelic).")
	options.Declare("-compression-level").
		SetDescription("Zlib compression level to use when transcoding to BGEN v1.1 format.").
		SetTakesSingleValue().
		SetDefaultValue("9")
	options.Declare("-vcf").
		SetDescription("Transcode to VCF format. VCFs will have a GT field inferred from the probabilities by threshholding," +
			" and a GP field holding the probabilities; phased data is also written under GP.")

	options.OptionExcludesGroup("-index", "Variant selection options")
	options.OptionExcludesGroup("-index", "Output options")
	options.OptionExcludesOption("-list", "-v11")
	options.OptionExcludesOption("-vcf", "-list")
	options.OptionExcludesOption("-vcf", "-v11")
	options.OptionImpliesOption("-clobber", "-index")
	options.OptionImpliesOption("-compression-level", "-v11")

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

	if options.Check("-config") {
		cfg, err := config.Load(options.Get("-config"))
		if err != nil {
			return app.Fail("%v\n", err)
		}
		options.SetDefault("-table", cfg.Index.Table)
		options.SetDefault("-compression-level", strconv.Itoa(cfg.Output.CompressionLevel))
		if cfg.Log.Path != "" {
			if err := app.TeeTo(cfg.Log.Path); err != nil {
				return app.Fail("Error opening log file %q: %v\n", cfg.Log.Path, err)
			}
		}
	}

	bgenFilename := options.Get("-g")
	indexFilename := bgenFilename + bgen.IndexSuffix
	if options.Check("-i") {
		indexFilename = options.Get("-i")
	}

	if !strings.HasPrefix(bgenFilename, "gs://") && !fileExists(bgenFilename) {
		return app.Fail("Error, the BGEN file %q does not exist!\n", bgenFilename)
	}

	if options.Check("-index") {
		return createBgenIndex(app, bgenFilename, indexFilename)
	}

	return processSelection(app, bgenFilename, indexFilename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func createBgenIndex(app *appcontext.ApplicationContext, bgenFilename, indexFilename string) error {
	if fileExists(indexFilename) && !app.Options.Check("-clobber") {
		return app.Fail("Error, the index file %q already exists, use -clobber if you want to overwrite it.\n", indexFilename)
	}

	app.Logger.Printf("%s: creating index for %q in %q...\n", programName, bgenFilename, indexFilename)

	view, err := bgen.NewView(bgenFilename)
	if err != nil {
		return app.Fail("%v\n", err)
	}
	defer view.Close()

	app.Logger.Printf("%s: Opened %q with %d variants...\n", programName, bgenFilename, view.NumberOfVariants())

	tracker := progress.New(os.Stderr, "Building BGEN index")
	err = bgen.CreateBGI(view, indexFilename, bgen.IndexOptions{
		Clobber:   app.Options.Check("-clobber"),
		WithRowID: app.Options.Check("-with-rowid"),
		Progress:  tracker.Update,
	})
	tracker.Done()
	if err != nil {
		return app.Fail("%v\n", err)
	}

	return nil
}

func processSelection(app *appcontext.ApplicationContext, bgenFilename, indexFilename string) error {
	view, err := bgen.NewView(bgenFilename)
	if err != nil {
		return app.Fail("%v\n", err)
	}
	defer view.Close()

	query, err := createIndexQuery(app, indexFilename)
	if err != nil {
		return err
	}
	defer query.Close()

	out := bufio.NewWriter(os.Stdout)

	transcode := app.Options.Check("-list") || app.Options.Check("-vcf") || app.Options.Check("-v11")
	if transcode {
		if err := view.SetQuery(query); err != nil {
			return app.Fail("%v\n", err)
		}

		switch {
		case app.Options.Check("-list"):
			err = processSelectionList(view, out)
		case app.Options.Check("-vcf"):
			err = transcodeWithProgress(view, func(opts bgen.TranscodeOptions) error {
				return bgen.TranscodeToVCF(view, out, opts)
			})
		case app.Options.Check("-v11"):
			var level int
			if level, err = app.Options.GetInt("-compression-level"); err != nil {
				return app.Fail("%v\n", err)
			}
			err = transcodeWithProgress(view, func(opts bgen.TranscodeOptions) error {
				opts.CompressionLevel = level
				return bgen.TranscodeToV11(view, out, opts)
			})
		}
	} else {
		// When not transcoding we skip the codec entirely and copy raw
		// byte ranges.
		tracker := progress.New(os.Stderr, fmt.Sprintf("Processing %d variants", query.NumberOfVariants()))
		err = bgen.ProcessNoTranscode(view, query, out, tracker.Update)
		tracker.Done()
		if err == nil {
			app.Logger.Printf("%s: wrote data for %d variants to stdout.\n", programName, query.NumberOfVariants())
		}
	}

	if err != nil {
		return app.Fail("%v\n", err)
	}
	if err := out.Flush(); err != nil {
		return app.Fail("%v\n", err)
	}

	return nil
}

func transcodeWithProgress(view *bgen.View, f func(opts bgen.TranscodeOptions) error) error {
	tracker := progress.New(os.Stderr, fmt.Sprintf("Processing %d variants", view.NumberOfVariants()))
	defer tracker.Done()

	return f(bgen.TranscodeOptions{Progress: tracker.Update})
}

func createIndexQuery(app *appcontext.ApplicationContext, indexFilename string) (*bgen.IndexQuery, error) {
	query, err := bgen.NewIndexQuery(indexFilename, app.Options.Get("-table"))
	if err != nil {
		app.Logger.Printf("!! Error opening index file %q: %v\n", indexFilename, err)
		return nil, app.Fail("Use \"%s -g %s -index\" to create the index file.\n", programName, app.Options.Get("-g"))
	}

	if app.Options.Check("-incl-range") {
		for _, elt := range collectUniqueIDs(app.Options.GetValues("-incl-range")) {
			r, err := bgen.ParseGenomicRange(elt)
			if err != nil {
				query.Close()
				return nil, app.Fail("%v\n", err)
			}
			query.IncludeRange(r)
		}
	}
	if app.Options.Check("-excl-range") {
		for _, elt := range collectUniqueIDs(app.Options.GetValues("-excl-range")) {
			r, err := bgen.ParseGenomicRange(elt)
			if err != nil {
				query.Close()
				return nil, app.Fail("%v\n", err)
			}
			query.ExcludeRange(r)
		}
	}
	if app.Options.Check("-incl-rsids") {
		query.IncludeRSIDs(collectUniqueIDs(app.Options.GetValues("-incl-rsids")))
	}
	if app.Options.Check("-excl-rsids") {
		query.ExcludeRSIDs(collectUniqueIDs(app.Options.GetValues("-excl-rsids")))
	}

	tracker := progress.New(os.Stderr, "Building query")
	err = query.Initialise(tracker.Update)
	tracker.Done()
	if err != nil {
		query.Close()
		return nil, app.Fail("%v\n", err)
	}

	return query, nil
}

// collectUniqueIDs expands any argument naming a readable file into the
// file's whitespace-separated tokens, then sorts and deduplicates.
func collectUniqueIDs(idsOrFilenames []string) []string {
	result := []string{}
	for _, elt := range idsOrFilenames {
		data, err := os.ReadFile(elt)
		if err != nil {
			result = append(result, elt)
			continue
		}
		result = append(result, strings.Fields(string(data))...)
	}

	sort.Strings(result)
	deduped := result[:0]
	for i, elt := range result {
		if i > 0 && elt == result[i-1] {
			continue
		}
		deduped = append(deduped, elt)
	}

	return deduped
}

func processSelectionList(view *bgen.View, out io.Writer) error {
	fmt.Fprintf(out, "# %s: started %s\n", programName, time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprint(out, "alternate_ids\trsid\tchromosome\tposition\tnumber_of_alleles\tfirst_allele\talternative_alleles\n")

	var v bgen.Variant
	total := view.NumberOfVariants()
	for i := uint32(0); i < total; i++ {
		ok, err := view.ReadVariant(&v)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("stream ended after %d of %d variants", i, total)
		}

		snpid, rsid := v.ID, v.RSID
		if snpid == "" {
			snpid = "."
		}
		if rsid == "" {
			rsid = "."
		}

		alternatives := make([]string, 0, len(v.Alleles)-1)
		for _, a := range v.Alleles[1:] {
			alternatives = append(alternatives, string(a))
		}

		fmt.Fprintf(out, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			snpid, rsid, v.Chromosome, v.Position, len(v.Alleles), v.Alleles[0], strings.Join(alternatives, ","))

		if err := view.IgnoreGenotypeDataBlock(); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "# %s: success, total %d variants.\n", programName, total)
	return nil
}
