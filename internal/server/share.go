package server

const sharePage = `<!DOCTYPE html>
<html lang="id">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<meta property="og:type" content="website">
<meta property="og:title" content="{{.Title}}">
<meta property="og:description" content="{{.Description}}">
<meta property="og:image" content="{{.ImageURL}}">
<meta property="og:image:type" content="image/png">
<meta property="og:image:width" content="{{.ImageWidth}}">
<meta property="og:image:height" content="{{.ImageHeight}}">
<meta property="og:url" content="{{.PageURL}}">
<meta name="twitter:card" content="summary_large_image">
<meta name="twitter:title" content="{{.Title}}">
<meta name="twitter:description" content="{{.Description}}">
<meta name="twitter:image" content="{{.ImageURL}}">
<meta http-equiv="refresh" content="0;url={{.RedirectURL}}">
</head>
<body>
<p>Mengalihkan ke <a href="{{.RedirectURL}}">halaman klaim kupon</a>...</p>
</body>
</html>
`

const shareDescription = "Jangan ragukan pelanggan, klaim untuk berlangganan dan nikmati fitur spesial!"

type sharePageData struct {
	Title       string
	Description string
	ImageURL    string
	ImageWidth  int
	ImageHeight int
	PageURL     string
	RedirectURL string
}
