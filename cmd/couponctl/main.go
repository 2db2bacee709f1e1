// Command couponctl encodes and decodes coupon tokens and renders coupon
// images locally, using the same configuration as the service.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"coupon-share-service/internal/config"
	"coupon-share-service/internal/coupon"
	"coupon-share-service/internal/render"
	"coupon-share-service/internal/token"
)

const usage = `usage: couponctl [-config path] <command> [args]

commands:
  encode <code>     print the share token for a coupon code
  decode <token>    print the coupon code carried by a token
  render [flags]    render a coupon image to a PNG file
`

func main() {
	configPath := flag.String("config", "", "path to config.yaml or config.json")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(err)
	}

	args := flag.Args()[1:]
	switch flag.Arg(0) {
	case "encode":
		err = encode(cfg, args)
	case "decode":
		err = decode(cfg, args)
	case "render":
		err = renderImage(cfg, args)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "couponctl:", err)
	os.Exit(1)
}

func newCodec(cfg *config.Config) (*token.Codec, error) {
	if cfg.Token.Secret == "" {
		return nil, fmt.Errorf("token secret is not configured (set token.secret or COUPON_TOKEN_SECRET)")
	}
	return token.NewCodec(cfg.Token.Secret)
}

func encode(cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("encode takes exactly one coupon code")
	}
	if err := coupon.ValidateCode(args[0]); err != nil {
		return err
	}
	codec, err := newCodec(cfg)
	if err != nil {
		return err
	}
	tok, err := codec.Encode(args[0])
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

func decode(cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("decode takes exactly one token")
	}
	codec, err := newCodec(cfg)
	if err != nil {
		return err
	}
	code, err := codec.Decode(args[0])
	if err != nil {
		return err
	}
	fmt.Println(code)
	return nil
}

func renderImage(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	code := fs.String("code", "", "coupon code")
	discountType := fs.String("type", "", "discount type: fixed, percentage or subscription")
	value := fs.Float64("value", 0, "discount value")
	expires := fs.String("expires", "", "expiration date, YYYY-MM-DD or RFC 3339")
	periods := fs.Int("periods", 0, "discount periods in weeks")
	variant := fs.String("variant", cfg.Render.Variant, "image variant: card or simple")
	out := fs.String("out", "", "output PNG path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("render needs -out")
	}

	meta, err := coupon.ParseQuery(url.Values{
		coupon.ParamCode:            {*code},
		coupon.ParamDiscountType:    {*discountType},
		coupon.ParamDiscountValue:   {strconv.FormatFloat(*value, 'f', -1, 64)},
		coupon.ParamExpirationDate:  {*expires},
		coupon.ParamDiscountPeriods: {strconv.Itoa(*periods)},
	})
	if err != nil {
		return err
	}

	v, err := render.ParseVariant(*variant)
	if err != nil {
		return err
	}

	r := render.New(render.NewDirAssets(cfg.Render.AssetDir), render.Options{
		Variant:    v,
		Background: cfg.Render.CardBackground,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	data, err := r.Render(ctx, meta, v)
	if err != nil {
		return err
	}

	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d bytes)\n", *out, len(data))
	return nil
}
