package service

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/zlnvch/layerdeck/models"
)

const (
	maxTitleLength  = 100
	maxDesignSide   = 10000
	maxRotationAbs  = 360
	minLayerSide    = 1
	minCropSide     = 1
	maxFilenameRune = 200
)

// ErrInvalid wraps every rejected input
var ErrInvalid = errors.New("invalid input")

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, err)
}

func ValidateDesign(title string, width, height int) error {
	return invalid(validateDesign(title, width, height))
}

func validateDesign(title string, width, height int) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("title required")
	}
	if len([]rune(title)) > maxTitleLength {
		return errors.New("title is too long")
	}
	if width < 1 || height < 1 {
		return errors.New("width and height must be at least 1")
	}
	if width > maxDesignSide || height > maxDesignSide {
		return errors.New("width or height too large")
	}
	return nil
}

func validateLayerType(t models.LayerType) error {
	switch t {
	case models.LayerImage, models.LayerText, models.LayerShape:
		return nil
	}
	return fmt.Errorf("invalid layer type %q", t)
}

func validateNumbers(fields map[string]float64) error {
	for name, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a finite number", name)
		}
	}
	return nil
}

func validateCrop(c *models.CropWindow) error {
	if c == nil {
		return nil
	}
	if err := validateNumbers(map[string]float64{"cropX": c.X, "cropY": c.Y, "cropW": c.W, "cropH": c.H}); err != nil {
		return err
	}
	if c.W < minCropSide || c.H < minCropSide {
		return errors.New("crop width and height must be at least 1")
	}
	if c.X < 0 || c.Y < 0 {
		return errors.New("crop origin must not be negative")
	}
	return nil
}

func validateRotation(r float64) error {
	if r < -maxRotationAbs || r > maxRotationAbs {
		return errors.New("rotation must be between -360 and 360")
	}
	return nil
}

func validateOpacity(o float64) error {
	if o < 0 || o > 1 {
		return errors.New("opacity must be between 0 and 1")
	}
	return nil
}

func ValidateLayerSpec(spec models.LayerSpec) error {
	return invalid(validateLayerSpec(spec))
}

func validateLayerSpec(spec models.LayerSpec) error {
	if err := validateLayerType(spec.Type); err != nil {
		return err
	}
	if spec.DesignId == "" {
		return errors.New("design id is required")
	}
	if spec.Type == models.LayerImage && spec.AssetId == "" {
		return errors.New("asset id is required")
	}
	err := validateNumbers(map[string]float64{
		"x": spec.X, "y": spec.Y, "width": spec.Width, "height": spec.Height,
		"rotation": spec.Rotation, "opacity": spec.Opacity,
	})
	if err != nil {
		return err
	}
	if spec.Width < minLayerSide || spec.Height < minLayerSide {
		return errors.New("width and height must be positive")
	}
	if err := validateRotation(spec.Rotation); err != nil {
		return err
	}
	if err := validateOpacity(spec.Opacity); err != nil {
		return err
	}
	if spec.ZIndex < 0 {
		return errors.New("z-index must not be negative")
	}
	return validateCrop(spec.Crop)
}

func ValidateLayerPatch(patch models.LayerPatch) error {
	return invalid(validateLayerPatch(patch))
}

func validateLayerPatch(patch models.LayerPatch) error {
	numbers := map[string]float64{}
	for name, v := range map[string]*float64{
		"x": patch.X, "y": patch.Y, "width": patch.Width, "height": patch.Height,
		"rotation": patch.Rotation, "opacity": patch.Opacity,
	} {
		if v != nil {
			numbers[name] = *v
		}
	}
	if err := validateNumbers(numbers); err != nil {
		return err
	}
	if (patch.Width != nil && *patch.Width < minLayerSide) || (patch.Height != nil && *patch.Height < minLayerSide) {
		return errors.New("width and height must be positive")
	}
	if patch.Rotation != nil {
		if err := validateRotation(*patch.Rotation); err != nil {
			return err
		}
	}
	if patch.Opacity != nil {
		if err := validateOpacity(*patch.Opacity); err != nil {
			return err
		}
	}
	if patch.ZIndex != nil && *patch.ZIndex < 0 {
		return errors.New("z-index must not be negative")
	}
	if patch.ClearCrop && patch.Crop != nil {
		return errors.New("crop cannot be set and cleared at once")
	}
	return validateCrop(patch.Crop)
}

func ValidateUpload(upload models.Upload, limits Limits) error {
	return invalid(validateUpload(upload, limits))
}

func validateUpload(upload models.Upload, limits Limits) error {
	if len(upload.Data) == 0 {
		return errors.New("no file provided")
	}
	if int64(len(upload.Data)) > limits.MaxUploadBytes {
		return fmt.Errorf("file too large, maximum size is %dMB", limits.MaxUploadBytes>>20)
	}
	if !slices.Contains(limits.AllowedMimeTypes, upload.MimeType) {
		return fmt.Errorf("invalid file type, allowed types: %s", strings.Join(limits.AllowedMimeTypes, ", "))
	}
	if len([]rune(upload.Filename)) > maxFilenameRune {
		return errors.New("file name is too long")
	}
	return nil
}
