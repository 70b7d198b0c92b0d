package descriptions

// Comprehensive tool descriptions with practical examples and use cases

const (
	PDFFillFileDescription = `Fill a single PDF document with the supplied field values.

**When to use:** Need to populate one form document with known values, such as a contact sheet, application, or intake form.

**Why it's useful:** Handles both kinds of documents transparently. PDFs with AcroForm fields are filled through the field mapping; flat PDFs get the values drawn as text next to the matching labels on the page.

**Examples:**
• Fill an application: "Fill application.pdf with the name and email for this client"
• Complete an intake form: "Put the phone number and address into intake-form.pdf"

**Common workflows:**
1. Single Document: List fields → Supply values → Fill → Review output
2. Template Reuse: Keep a blank template → Fill a copy per client

**Best practices:** Run pdf_list_form_fields first to see which fields the document already carries. The filled copy is written next to the original as filled_<name>.pdf.`

	PDFFillZipDescription = `Fill every PDF inside a zip archive with the supplied field values.

**When to use:** Need to populate a whole packet of forms at once, such as an onboarding bundle or a set of per-agency filings.

**Why it's useful:** One call processes the entire archive. Each document is filled independently, failures never abort the batch, and the output archive carries a manifest.json describing what happened to every entry.

**Examples:**
• Onboarding packet: "Fill onboarding-forms.zip with this employee's details"
• Filing bundle: "Populate tax-packet.zip with the company name and EIN"

**Common workflows:**
1. Batch Fill: Upload archive → Fill → Inspect manifest → Download outputs
2. Partial Data: Fill what is known now → Re-run later with the remaining values

**Best practices:** Documents the values did not change come back prefixed original_, filled ones filled_. Non-PDF entries are skipped and recorded in the manifest.`

	PDFListFormFieldsDescription = `List the AcroForm fields of a PDF with their current values.

**When to use:** Before filling a document, to see whether it carries interactive form fields and what they are named.

**Why it's useful:** Shows whether pdf_fill_file will write into real form fields or fall back to drawing text next to labels, and reveals values a document already carries.

**Examples:**
• Inspect a form: "What fields does w9.pdf have and which are already filled?"
• Debug a mapping: "Check whether contract.pdf names its email field 'Email' or 'applicant_email'"

**Common workflows:**
1. Pre-fill Inspection: List fields → Match against known values → Fill
2. Mapping Maintenance: List fields → Update the field mapping → Re-run

**Best practices:** A document with no fields listed is flat; filling it relies on the label patterns instead.`

	PDFServerInfoDescription = `Get server information, the accepted field keys, and usage guidance.

**When to use:** At the start of a session, to discover which canonical field keys the fill tools accept and where file paths resolve.

**Why it's useful:** The fill tools only accept values for keys defined in the field mapping; this tool lists them along with the working directory and every available tool.

**Examples:**
• Orientation: "What fields can I fill and where do paths resolve?"
• Capability check: "Does this server know an 'ein' field?"

**Best practices:** Call once before the first fill to learn the accepted keys.`
)
