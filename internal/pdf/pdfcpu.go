package pdf

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// engine implements Engine on pdfcpu for structural work (forms,
// annotations, serialization, stamping) and ledongthuc/pdf for positioned
// text extraction.
type engine struct{}

// NewEngine returns the production Engine.
func NewEngine() Engine {
	return &engine{}
}

func relaxedConf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

func (e *engine) readContext(doc []byte, op string) (*model.Context, error) {
	ctx, err := api.ReadContext(bytes.NewReader(doc), relaxedConf())
	if err != nil {
		return nil, &ParseError{Op: op, Err: err}
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, &ParseError{Op: op, Err: err}
	}
	return ctx, nil
}

// acroFields resolves the AcroForm Fields array of the catalog, or nil
// when the document has no form.
func acroFields(ctx *model.Context) (types.Dict, types.Array, error) {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, nil, fmt.Errorf("catalog: %w", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return nil, nil, nil
	}

	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return nil, nil, fmt.Errorf("dereference AcroForm: %w", err)
	}
	if acroFormDict == nil {
		return nil, nil, nil
	}

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return acroFormDict, nil, nil
	}

	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, nil, fmt.Errorf("dereference Fields: %w", err)
	}

	return acroFormDict, fieldsArray, nil
}

// FormFields lists all terminal AcroForm fields with their current values.
func (e *engine) FormFields(doc []byte) ([]FormField, error) {
	ctx, err := e.readContext(doc, "form fields")
	if err != nil {
		return nil, err
	}

	_, fieldsArray, err := acroFields(ctx)
	if err != nil {
		return nil, &ParseError{Op: "form fields", Err: err}
	}

	fields := []FormField{}
	walkFields(ctx, fieldsArray, "", func(name string, fieldDict types.Dict, _ []types.Dict) {
		field := FormField{Name: name}
		if valueObj, found := fieldDict.Find("V"); found {
			if v, err := ctx.DereferenceStringOrHexLiteral(valueObj, model.V10, nil); err == nil {
				field.Value = v
			}
		}
		fields = append(fields, field)
	})

	return fields, nil
}

// SetFormFields writes string values into matching fields and serializes
// the document. NeedAppearances is set so viewers regenerate the widget
// appearance for the new values.
func (e *engine) SetFormFields(doc []byte, values map[string]string) ([]byte, error) {
	ctx, err := e.readContext(doc, "set form fields")
	if err != nil {
		return nil, err
	}

	acroFormDict, fieldsArray, err := acroFields(ctx)
	if err != nil {
		return nil, &ParseError{Op: "set form fields", Err: err}
	}
	if acroFormDict == nil || len(fieldsArray) == 0 {
		return doc, nil
	}

	wrote := false
	walkFields(ctx, fieldsArray, "", func(name string, fieldDict types.Dict, widgets []types.Dict) {
		value, ok := values[name]
		if !ok {
			return
		}
		fieldDict.Update("V", types.StringLiteral(escapeString(value)))
		// Stale appearance streams would keep showing the old value.
		fieldDict.Delete("AP")
		for _, w := range widgets {
			w.Delete("AP")
		}
		wrote = true
	})

	if !wrote {
		return doc, nil
	}
	acroFormDict.Update("NeedAppearances", types.Boolean(true))

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, &ParseError{Op: "set form fields", Err: err}
	}
	return buf.Bytes(), nil
}

// walkFields visits every terminal field reachable from arr, building
// fully qualified names the way pypdf and Acrobat report them. Widget-only
// kids (no T entry) belong to the terminal field itself and are passed to
// the visitor alongside it.
func walkFields(ctx *model.Context, arr types.Array, prefix string,
	visit func(name string, fieldDict types.Dict, widgets []types.Dict),
) {
	for _, fieldRef := range arr {
		fieldDict, err := ctx.DereferenceDict(fieldRef)
		if err != nil || fieldDict == nil {
			continue
		}

		name := prefix
		if nameObj, found := fieldDict.Find("T"); found {
			if t, err := ctx.DereferenceStringOrHexLiteral(nameObj, model.V10, nil); err == nil {
				if name != "" {
					name += "."
				}
				name += t
			}
		}

		var childFields types.Array
		var widgets []types.Dict
		if kidsObj, found := fieldDict.Find("Kids"); found {
			kidsArray, err := ctx.DereferenceArray(kidsObj)
			if err == nil {
				for _, kidRef := range kidsArray {
					kidDict, err := ctx.DereferenceDict(kidRef)
					if err != nil || kidDict == nil {
						continue
					}
					if _, hasName := kidDict.Find("T"); hasName {
						childFields = append(childFields, kidRef)
					} else {
						widgets = append(widgets, kidDict)
					}
				}
			}
		}

		if len(childFields) > 0 {
			walkFields(ctx, childFields, name, visit)
			continue
		}
		if name == "" {
			continue
		}
		visit(name, fieldDict, widgets)
	}
}

// escapeString escapes the characters that terminate a PDF literal string.
func escapeString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

// DrawText stamps each mark onto its page as black Helvetica text anchored
// at the mark's position, one stamping pass per mark.
func (e *engine) DrawText(doc []byte, marks []TextMark) ([]byte, error) {
	out := doc
	for _, m := range marks {
		desc := fmt.Sprintf(
			"fontname:Helvetica, points:%d, position:bl, offset:%.2f %.2f, scalefactor:1 abs, rotation:0, fillcolor:#000000, opacity:1",
			int(m.FontSize), m.X, m.Y,
		)
		wm, err := api.TextWatermark(m.Text, desc, true, false, types.POINTS)
		if err != nil {
			return nil, &ParseError{Op: "draw text", Err: err}
		}

		var buf bytes.Buffer
		pages := []string{strconv.Itoa(m.Page)}
		if err := api.AddWatermarks(bytes.NewReader(out), &buf, pages, wm, relaxedConf()); err != nil {
			return nil, &ParseError{Op: "draw text", Err: err}
		}
		out = buf.Bytes()
	}
	return out, nil
}

// Highlight inserts a yellow semi-transparent highlight annotation over
// each region.
func (e *engine) Highlight(doc []byte, regions []Region) ([]byte, error) {
	if len(regions) == 0 {
		return doc, nil
	}

	ctx, err := e.readContext(doc, "highlight")
	if err != nil {
		return nil, err
	}

	byPage := map[int][]Region{}
	for _, r := range regions {
		byPage[r.Page] = append(byPage[r.Page], r)
	}

	for page, regs := range byPage {
		pageDict, _, _, err := ctx.PageDict(page, false)
		if err != nil {
			return nil, &ParseError{Op: "highlight", Err: err}
		}

		var annots types.Array
		if annotsObj, found := pageDict.Find("Annots"); found {
			if arr, err := ctx.DereferenceArray(annotsObj); err == nil {
				annots = arr
			}
		}

		for _, r := range regs {
			annotDict := types.Dict(map[string]types.Object{
				"Type":    types.Name("Annot"),
				"Subtype": types.Name("Highlight"),
				"Rect":    types.NewNumberArray(r.X0, r.Y0, r.X1, r.Y1),
				// Quad order per PDF 32000-1 8.4.2: upper pair first.
				"QuadPoints": types.NewNumberArray(r.X0, r.Y1, r.X1, r.Y1, r.X0, r.Y0, r.X1, r.Y0),
				"C":          types.NewNumberArray(1, 1, 0),
				"CA":         types.Float(0.3),
				"F":          types.Integer(4),
			})
			indRef, err := ctx.IndRefForNewObject(annotDict)
			if err != nil {
				return nil, &ParseError{Op: "highlight", Err: err}
			}
			annots = append(annots, *indRef)
		}
		pageDict.Update("Annots", annots)
	}

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, &ParseError{Op: "highlight", Err: err}
	}
	return buf.Bytes(), nil
}
