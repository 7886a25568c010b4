package canvas

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sort"
	"strconv"
	"strings"
)

var ErrInvalidSizeSpec = errors.New("invalid size spec")

const (
	DefaultPreset = "square"
	DefaultMargin = 111
)

// Size 画布宽高
type Size struct {
	Width  int
	Height int
}

var presets = map[string]Size{
	"square":    {1000, 1000},
	"square-xl": {1400, 1400},
	"landscape": {1920, 1080},
	"portrait":  {1080, 1920},
}

// Preset 查找预设尺寸
func Preset(name string) (Size, bool) {
	s, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// PresetNames 按名称排序
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseSize 解析 "WxH" 或 "N"（正方形）
func ParseSize(s string) (Size, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, "×", "x")
	if v == "" {
		return Size{}, fmt.Errorf("%w: empty size", ErrInvalidSizeSpec)
	}

	parts := strings.Split(v, "x")
	switch len(parts) {
	case 1:
		n, err := positive(parts[0])
		if err != nil {
			return Size{}, fmt.Errorf("%w: size %q: %v", ErrInvalidSizeSpec, s, err)
		}
		return Size{n, n}, nil
	case 2:
		w, err := positive(parts[0])
		if err != nil {
			return Size{}, fmt.Errorf("%w: width in %q: %v", ErrInvalidSizeSpec, s, err)
		}
		h, err := positive(parts[1])
		if err != nil {
			return Size{}, fmt.Errorf("%w: height in %q: %v", ErrInvalidSizeSpec, s, err)
		}
		return Size{w, h}, nil
	default:
		return Size{}, fmt.Errorf("%w: size %q, want WxH or N", ErrInvalidSizeSpec, s)
	}
}

func positive(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.New("not a number")
	}
	if n <= 0 {
		return 0, errors.New("must be positive")
	}
	return n, nil
}

// Margins 四边留白（像素）
type Margins struct {
	Left   int `yaml:"left"`
	Right  int `yaml:"right"`
	Top    int `yaml:"top"`
	Bottom int `yaml:"bottom"`
}

func UniformMargins(n int) Margins {
	return Margins{Left: n, Right: n, Top: n, Bottom: n}
}

// Spec 目标画布：尺寸、留白和背景色
type Spec struct {
	Width      int
	Height     int
	Margins    Margins
	Background color.NRGBA
}

// NewSpec 由预设名或手动尺寸构造画布，两者互斥，都为空时使用 square 预设
func NewSpec(preset, outSize string, m Margins, bg color.NRGBA) (Spec, error) {
	preset, outSize = strings.TrimSpace(preset), strings.TrimSpace(outSize)

	var size Size
	switch {
	case preset != "" && outSize != "":
		return Spec{}, fmt.Errorf("%w: --preset and --out-size are mutually exclusive", ErrInvalidSizeSpec)
	case outSize != "":
		s, err := ParseSize(outSize)
		if err != nil {
			return Spec{}, err
		}
		size = s
	default:
		if preset == "" {
			preset = DefaultPreset
		}
		s, ok := Preset(preset)
		if !ok {
			return Spec{}, fmt.Errorf("%w: unknown preset %q (want one of %s)",
				ErrInvalidSizeSpec, preset, strings.Join(PresetNames(), ", "))
		}
		size = s
	}

	spec := Spec{Width: size.Width, Height: size.Height, Margins: m, Background: bg}
	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

func (s Spec) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidSizeSpec, s.Width, s.Height)
	}
	m := s.Margins
	if m.Left < 0 || m.Right < 0 || m.Top < 0 || m.Bottom < 0 {
		return fmt.Errorf("%w: negative margin", ErrInvalidSizeSpec)
	}
	// 不做加法，避免超大留白溢出后绕过校验
	if m.Left >= s.Width || m.Right >= s.Width-m.Left {
		return fmt.Errorf("%w: width %d leaves no room for left %d + right %d margins",
			ErrInvalidSizeSpec, s.Width, m.Left, m.Right)
	}
	if m.Top >= s.Height || m.Bottom >= s.Height-m.Top {
		return fmt.Errorf("%w: height %d leaves no room for top %d + bottom %d margins",
			ErrInvalidSizeSpec, s.Height, m.Top, m.Bottom)
	}
	return nil
}

// SafeArea 留白以内放置主体的区域
func (s Spec) SafeArea() image.Rectangle {
	return image.Rect(s.Margins.Left, s.Margins.Top, s.Width-s.Margins.Right, s.Height-s.Margins.Bottom)
}

func (s Spec) String() string {
	m := s.Margins
	return fmt.Sprintf("%dx%d margins(l=%d r=%d t=%d b=%d)", s.Width, s.Height, m.Left, m.Right, m.Top, m.Bottom)
}

// ParseBackground 解析背景色: "transparent"、"white"、"black"、"#RRGGBB"、"#RRGGBBAA"
func ParseBackground(s string) (color.NRGBA, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "", "transparent", "none":
		return color.NRGBA{}, nil
	case "white":
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}, nil
	case "black":
		return color.NRGBA{A: 255}, nil
	}

	hex := strings.TrimPrefix(v, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("%w: background %q", ErrInvalidSizeSpec, s)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: background %q", ErrInvalidSizeSpec, s)
	}
	if len(hex) == 6 {
		n = n<<8 | 0xFF
	}
	return color.NRGBA{R: uint8(n >> 24), G: uint8(n >> 16), B: uint8(n >> 8), A: uint8(n)}, nil
}
